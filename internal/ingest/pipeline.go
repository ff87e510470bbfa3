// Package ingest loads the state/LGA reference into storage and imports
// provider sources row by row with a resumable checkpoint.
package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/fetcher"
	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/resilience"
)

// DefaultBatchSize is the number of mapped rows per insert.
const DefaultBatchSize = 1000

// ErrImportInProgress is returned when another run in this process is using
// the same checkpoint. Runs in separate processes are not coordinated.
var ErrImportInProgress = eris.New("ingest: import already in progress")

// Store is the storage surface the pipeline writes through.
type Store interface {
	HierarchyStore
	InsertProviders(ctx context.Context, providers []model.Provider) (int64, error)
}

// Options configures one import run.
type Options struct {
	Source               string // local path, http(s):// or ftp:// URL
	GeoPath              string // reference document; skipped when the directory is already loaded
	CheckpointPath       string // empty disables checkpointing
	ErrorCSVPath         string // empty disables the error report
	HierarchySummaryPath string
	BatchSize            int
}

// Result counts the outcome of a run. TotalRows includes skipped rows.
type Result struct {
	TotalRows int   `json:"totalRows"`
	Inserted  int64 `json:"inserted"`
	Skipped   int   `json:"skipped"`
	Invalid   int   `json:"invalid"`
}

// Pipeline imports provider sources into a Store.
type Pipeline struct {
	store  Store
	dir    *geodir.Directory
	opener *fetcher.Opener
	retry  resilience.RetryConfig
	log    *zap.Logger
}

// New creates a Pipeline. The directory is shared with the rest of the
// process; the pipeline only loads it if nobody has yet.
func New(st Store, dir *geodir.Directory, opener *fetcher.Opener) *Pipeline {
	log := zap.L().With(zap.String("component", "ingest"))
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(log, "insert providers")
	return &Pipeline{
		store:  st,
		dir:    dir,
		opener: opener,
		retry:  retry,
		log:    log,
	}
}

// WithRetry overrides the retry policy used around store writes.
func (p *Pipeline) WithRetry(cfg resilience.RetryConfig) *Pipeline {
	p.retry = cfg
	return p
}

var running sync.Map

// acquire marks key as running, failing if it already is.
func acquire(key string) (release func(), err error) {
	if _, busy := running.LoadOrStore(key, struct{}{}); busy {
		return nil, eris.Wrapf(ErrImportInProgress, "checkpoint %s", key)
	}
	return func() { running.Delete(key) }, nil
}

func guardKey(opts Options) string {
	key := opts.CheckpointPath
	if key == "" {
		key = opts.Source
	}
	if abs, err := filepath.Abs(key); err == nil {
		return abs
	}
	return key
}

// Run imports opts.Source. A single bad row never aborts the run; storage
// failures are retried and then returned.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Source == "" {
		return nil, eris.New("ingest: no source given")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	release, err := acquire(guardKey(opts))
	if err != nil {
		return nil, err
	}
	defer release()

	if !p.dir.Loaded() {
		if opts.GeoPath == "" {
			return nil, eris.New("ingest: directory not loaded and no reference document given")
		}
		if err := p.dir.LoadFile(opts.GeoPath); err != nil {
			return nil, eris.Wrap(err, "ingest: load reference")
		}
	}
	if _, err := SyncHierarchy(ctx, p.store, p.dir, opts.HierarchySummaryPath); err != nil {
		return nil, err
	}

	checkpoint := 0
	if opts.CheckpointPath != "" {
		checkpoint = LoadCheckpoint(opts.CheckpointPath)
	}

	src, err := p.opener.Open(ctx, opts.Source)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open source")
	}
	defer src.Close() //nolint:errcheck

	p.log.Info("import started",
		zap.String("source", opts.Source),
		zap.String("format", string(src.Format)),
		zap.Int("checkpoint", checkpoint),
	)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := src.Rows(streamCtx)

	r := &run{p: p, opts: opts, result: &Result{}}
	var header []string
	for record := range rowCh {
		trimCells(record)
		if header == nil {
			if isBlank(record) {
				continue
			}
			header = record
			continue
		}
		if isBlank(record) {
			continue
		}

		r.result.TotalRows++
		if r.result.TotalRows <= checkpoint {
			r.result.Skipped++
			continue
		}

		provider, err := MapRow(NewRow(header, record), p.dir)
		if err != nil {
			r.reject(record, err)
			// The checkpoint may only pass this row once every valid row
			// before it is stored.
			if err := r.settle(ctx); err != nil {
				return nil, err
			}
			continue
		}

		r.batch = append(r.batch, provider)
		if len(r.batch) >= opts.BatchSize {
			if err := r.flush(ctx); err != nil {
				return nil, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: read source")
	}

	if len(r.batch) > 0 {
		if err := r.flush(ctx); err != nil {
			return nil, err
		}
	}

	if len(r.rejected) > 0 && opts.ErrorCSVPath != "" {
		if err := WriteErrorCSV(opts.ErrorCSVPath, header, r.rejected); err != nil {
			return nil, err
		}
	}

	p.log.Info("import finished",
		zap.Int("total_rows", r.result.TotalRows),
		zap.Int64("inserted", r.result.Inserted),
		zap.Int("skipped", r.result.Skipped),
		zap.Int("invalid", r.result.Invalid),
	)
	return r.result, nil
}

// run is the mutable state of one Run call.
type run struct {
	p        *Pipeline
	opts     Options
	result   *Result
	batch    []model.Provider
	rejected []ErrorRecord
}

func (r *run) reject(record []string, err error) {
	reason := err.Error()
	var rowErr *RowError
	if eris.As(err, &rowErr) {
		reason = rowErr.Reason
	}
	r.result.Invalid++
	r.rejected = append(r.rejected, ErrorRecord{Values: record, Reason: reason})
	r.p.log.Debug("row rejected", zap.Int("row", r.result.TotalRows), zap.String("reason", reason))
}

// settle flushes any pending batch, which also saves the checkpoint, or
// saves the checkpoint alone when nothing is pending.
func (r *run) settle(ctx context.Context) error {
	if len(r.batch) > 0 {
		return r.flush(ctx)
	}
	return r.save()
}

func (r *run) flush(ctx context.Context) error {
	batch := r.batch
	n, err := resilience.DoVal(ctx, r.p.retry, func(ctx context.Context) (int64, error) {
		return r.p.store.InsertProviders(ctx, batch)
	})
	if err != nil {
		return eris.Wrapf(err, "ingest: insert batch ending at row %d", r.result.TotalRows)
	}
	r.result.Inserted += n
	r.batch = r.batch[:0]

	r.p.log.Info("batch flushed",
		zap.Int("rows", len(batch)),
		zap.Int64("inserted", n),
		zap.Int("last_row", r.result.TotalRows),
	)
	return r.save()
}

func (r *run) save() error {
	if r.opts.CheckpointPath == "" {
		return nil
	}
	return SaveCheckpoint(r.opts.CheckpointPath, r.result.TotalRows)
}

func trimCells(record []string) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
}

func isBlank(record []string) bool {
	for _, c := range record {
		if c != "" {
			return false
		}
	}
	return true
}
