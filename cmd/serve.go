package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lifeline-ng/lifeline/internal/api"
	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/ingest"
	"github.com/lifeline-ng/lifeline/internal/search"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		dir := geodir.New()
		if err := dir.LoadFile(cfg.Import.GeoPath); err != nil {
			zap.L().Warn("reference not loaded; admin imports will retry on demand",
				zap.String("path", cfg.Import.GeoPath), zap.Error(err))
		}

		srv := api.New(search.NewService(st), ingest.New(st, dir, newOpener()), api.Options{
			AdminKey:       cfg.Server.AdminKey,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			CORSOrigins:    cfg.Server.CORSOrigins,
			ImportDir:      cfg.Import.UploadDir,
			Import: ingest.Options{
				Source:               cfg.Import.CSVPath,
				GeoPath:              cfg.Import.GeoPath,
				CheckpointPath:       cfg.Import.CheckpointPath,
				ErrorCSVPath:         cfg.Import.ErrorCSVPath,
				HierarchySummaryPath: filepath.Join(filepath.Dir(cfg.Import.GeoPath), ingest.SummaryFileName),
				BatchSize:            cfg.Import.BatchSize,
			},
		})

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return eris.Wrap(httpSrv.Shutdown(shutdownCtx), "serve: shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default server.port)")
	rootCmd.AddCommand(serveCmd)
}
