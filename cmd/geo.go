package main

import (
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/ingest"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "State and LGA reference commands",
}

var geoSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert the state/LGA reference into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path := geoPath(cmd)

		dir := geodir.New()
		if err := dir.LoadFile(path); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "geo sync: migrate")
		}

		summaryPath := filepath.Join(filepath.Dir(path), ingest.SummaryFileName)
		summary, err := ingest.SyncHierarchy(ctx, st, dir, summaryPath)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

var geoMatchStateCmd = &cobra.Command{
	Use:   "match-state <name>",
	Short: "Resolve a free-text state name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := loadDirectory(geoPath(cmd))
		if err != nil {
			return err
		}
		return matchState(cmd.OutOrStdout(), dir, args[0])
	},
}

var geoMatchLGACmd = &cobra.Command{
	Use:   "match-lga <name>",
	Short: "Resolve a free-text LGA name within a state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateID, _ := cmd.Flags().GetInt("state")
		dir, err := loadDirectory(geoPath(cmd))
		if err != nil {
			return err
		}
		return matchLGA(cmd.OutOrStdout(), dir, stateID, args[0])
	},
}

var geoStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "Print the loaded reference",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		dir, err := loadDirectory(geoPath(cmd))
		if err != nil {
			return err
		}
		return printFormat(cmd.OutOrStdout(), format, dir.States())
	},
}

func init() {
	geoCmd.PersistentFlags().String("geo", "", "state/LGA reference JSON (default import.geo_path)")
	geoMatchLGACmd.Flags().Int("state", 0, "state id the LGA belongs to")
	_ = geoMatchLGACmd.MarkFlagRequired("state")
	geoStatesCmd.Flags().String("format", "json", "output format: json or yaml")

	geoCmd.AddCommand(geoSyncCmd, geoMatchStateCmd, geoMatchLGACmd, geoStatesCmd)
	rootCmd.AddCommand(geoCmd)
}

func geoPath(cmd *cobra.Command) string {
	if f := cmd.Flag("geo"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return cfg.Import.GeoPath
}

func loadDirectory(path string) (*geodir.Directory, error) {
	dir := geodir.New()
	if err := dir.LoadFile(path); err != nil {
		return nil, err
	}
	return dir, nil
}

func matchState(w io.Writer, dir *geodir.Directory, name string) error {
	st, ok := dir.MatchStateByName(name)
	if !ok {
		return eris.Errorf("no state matches %q", name)
	}
	st.LGAs = nil
	return printJSON(w, st)
}

func matchLGA(w io.Writer, dir *geodir.Directory, stateID int, name string) error {
	lga, ok := dir.MatchLGAByName(stateID, name)
	if !ok {
		return eris.Errorf("no LGA in state %d matches %q", stateID, name)
	}
	return printJSON(w, lga)
}
