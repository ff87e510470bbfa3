package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lifeline-ng/lifeline/internal/db"
	"github.com/lifeline-ng/lifeline/internal/fetcher"
	"github.com/lifeline-ng/lifeline/internal/store"
)

// initStore validates the store section and opens the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, db.PoolConfig{
			URL:      cfg.Store.DatabaseURL,
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newOpener() *fetcher.Opener {
	return fetcher.NewOpener(fetcher.OpenerOptions{
		HTTP:    fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: cfg.Import.HTTPTimeout()}),
		FTP:     fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: cfg.Import.HTTPTimeout()}),
		TempDir: cfg.Import.TempDir,
	})
}
