package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import providers from a CSV or XLSX source",
	Long: `Streams a provider source (local path, http(s):// or ftp:// URL, optionally
zipped), resolves each row's state and LGA, and inserts valid rows in batches.
Progress is checkpointed so an interrupted run resumes where it stopped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts, err := importOptions(cmd)
		if err != nil {
			return err
		}
		if reset, _ := cmd.Flags().GetBool("reset"); reset && opts.CheckpointPath != "" {
			if err := os.Remove(opts.CheckpointPath); err != nil && !os.IsNotExist(err) {
				return eris.Wrap(err, "import: reset checkpoint")
			}
			zap.L().Info("checkpoint removed", zap.String("path", opts.CheckpointPath))
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "import: migrate")
		}

		p := ingest.New(st, geodir.New(), newOpener())
		result, err := p.Run(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	f := importCmd.Flags()
	f.String("source", "", "provider source (default import.csv_path)")
	f.String("geo", "", "state/LGA reference JSON (default import.geo_path)")
	f.String("checkpoint", "", "checkpoint file (default import.checkpoint_path)")
	f.String("errors", "", "rejected-row CSV (default import.error_csv_path)")
	f.Int("batch-size", 0, "rows per insert (default import.batch_size)")
	f.Bool("reset", false, "delete the checkpoint before starting")
	rootCmd.AddCommand(importCmd)
}

// importOptions merges command flags over the import config section.
func importOptions(cmd *cobra.Command) (ingest.Options, error) {
	f := cmd.Flags()
	if v, _ := f.GetString("source"); v != "" {
		cfg.Import.CSVPath = v
	}
	if v, _ := f.GetString("geo"); v != "" {
		cfg.Import.GeoPath = v
	}
	if v, _ := f.GetString("checkpoint"); v != "" {
		cfg.Import.CheckpointPath = v
	}
	if v, _ := f.GetString("errors"); v != "" {
		cfg.Import.ErrorCSVPath = v
	}
	if v, _ := f.GetInt("batch-size"); v > 0 {
		cfg.Import.BatchSize = v
	}
	if err := cfg.Validate("import"); err != nil {
		return ingest.Options{}, err
	}

	return ingest.Options{
		Source:               cfg.Import.CSVPath,
		GeoPath:              cfg.Import.GeoPath,
		CheckpointPath:       cfg.Import.CheckpointPath,
		ErrorCSVPath:         cfg.Import.ErrorCSVPath,
		HierarchySummaryPath: filepath.Join(filepath.Dir(cfg.Import.GeoPath), ingest.SummaryFileName),
		BatchSize:            cfg.Import.BatchSize,
	}, nil
}
