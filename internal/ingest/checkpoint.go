package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Checkpoint records the last source row (1-indexed, header excluded) whose
// outcome is durable. Rows at or below LastRow are skipped on the next run.
type Checkpoint struct {
	LastRow   int       `json:"lastRow"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoadCheckpoint reads the checkpoint at path. A missing or unreadable file
// means "start from the beginning" and yields 0.
func LoadCheckpoint(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil || cp.LastRow < 0 {
		return 0
	}
	return cp.LastRow
}

// SaveCheckpoint overwrites the checkpoint at path.
func SaveCheckpoint(path string, lastRow int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "ingest: create checkpoint dir %s", dir)
		}
	}

	data, err := json.MarshalIndent(Checkpoint{LastRow: lastRow, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ingest: encode checkpoint")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write checkpoint %s", path)
	}
	return nil
}
