package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/geodir"
	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const testReference = `{
  "states": [
    {"id": 1, "name": "Lagos", "slug": "lagos", "lgas": [
      {"id": 10, "name": "Ikeja", "slug": "ikeja"},
      {"id": 11, "name": "Eti-Osa", "slug": "eti-osa"}
    ]},
    {"id": 15, "name": "Federal Capital Territory", "slug": "fct", "display_name": "FCT Abuja", "lgas": [
      {"id": 150, "name": "Abuja Municipal Area Council", "slug": "amac"},
      {"id": 151, "name": "Bwari", "slug": "bwari"}
    ]}
  ]
}`

func loadTestDirectory(t *testing.T) *geodir.Directory {
	t.Helper()
	dir := geodir.New()
	require.NoError(t, dir.Load(strings.NewReader(testReference)))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "lifeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// recordingStore captures writes in memory and can fail on demand.
type recordingStore struct {
	states   []model.State
	inserted [][]model.Provider
	failures []error // returned by successive InsertProviders calls; a nil entry succeeds
	calls    int
}

func (s *recordingStore) SyncHierarchy(_ context.Context, states []model.State) error {
	s.states = states
	return nil
}

func (s *recordingStore) InsertProviders(_ context.Context, providers []model.Provider) (int64, error) {
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return 0, err
		}
	}
	s.inserted = append(s.inserted, append([]model.Provider(nil), providers...))
	return int64(len(providers)), nil
}
