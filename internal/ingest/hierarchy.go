package ingest

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/model"
)

// HierarchyStore persists the state/LGA reference.
type HierarchyStore interface {
	SyncHierarchy(ctx context.Context, states []model.State) error
}

// HierarchySummary counts what a hierarchy sync wrote.
type HierarchySummary struct {
	States int `json:"states"`
	LGAs   int `json:"lgas"`
}

// SummaryFileName is written next to the reference document by the CLI.
const SummaryFileName = "states_lgas_imported.json"

// SyncHierarchy upserts every state and LGA of a loaded directory in a
// single store transaction. When summaryPath is set the counts are also
// written there as JSON.
func SyncHierarchy(ctx context.Context, st HierarchyStore, dir *geodir.Directory, summaryPath string) (*HierarchySummary, error) {
	if !dir.Loaded() {
		return nil, eris.New("ingest: directory not loaded")
	}

	if err := st.SyncHierarchy(ctx, dir.States()); err != nil {
		return nil, eris.Wrap(err, "ingest: sync hierarchy")
	}

	states, lgas := dir.Counts()
	summary := &HierarchySummary{States: states, LGAs: lgas}

	zap.L().Info("hierarchy synced",
		zap.String("component", "ingest"),
		zap.Int("states", states),
		zap.Int("lgas", lgas),
	)

	if summaryPath != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return nil, eris.Wrap(err, "ingest: encode hierarchy summary")
		}
		if err := os.WriteFile(summaryPath, data, 0o644); err != nil {
			return nil, eris.Wrapf(err, "ingest: write hierarchy summary %s", summaryPath)
		}
	}
	return summary, nil
}
