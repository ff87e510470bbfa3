package geodir

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func loadTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d := New()
	require.NoError(t, d.LoadFile(filepath.Join("testdata", "states_lgas.json")))
	return d
}

func TestLoad_ObjectForm(t *testing.T) {
	d := loadTestDirectory(t)

	states := d.States()
	require.Len(t, states, 3)
	assert.Equal(t, 1, states[0].ID)
	assert.Equal(t, "Lagos State", states[0].DisplayName)
	assert.Equal(t, "FCT Abuja State", states[1].DisplayName)
	assert.Equal(t, 20, states[2].ID, "numeric string ids are accepted")

	nStates, nLGAs := d.Counts()
	assert.Equal(t, 3, nStates)
	assert.Equal(t, 7, nLGAs)

	lgas := d.LGAs(1)
	require.Len(t, lgas, 3)
	assert.Equal(t, 1, lgas[0].StateID)
	assert.Nil(t, d.LGAs(999))
}

func TestStatesAndLGAs_ReturnCopies(t *testing.T) {
	d := loadTestDirectory(t)

	states := d.States()
	states[0].Name = "Mutated"
	states[0].LGAs[0].Name = "Mutated"
	_ = append(states[:0], states[1:]...)

	lgas := d.LGAs(1)
	lgas[1].Name = "Mutated"

	fresh := d.States()
	require.Len(t, fresh, 3)
	assert.Equal(t, "Lagos", fresh[0].Name)
	assert.NotEqual(t, "Mutated", fresh[0].LGAs[0].Name)
	assert.NotEqual(t, "Mutated", d.LGAs(1)[1].Name)

	st, ok := d.MatchStateByName("Lagos")
	assert.True(t, ok)
	assert.Equal(t, 1, st.ID)
}

func TestLoad_ArrayForm(t *testing.T) {
	d := New()
	doc := `[{"id": 3, "name": "Kano", "slug": "kano", "lgas": [{"id": 30, "name": "Nassarawa", "slug": "nassarawa"}]}]`
	require.NoError(t, d.Load(strings.NewReader(doc)))

	states := d.States()
	require.Len(t, states, 1)
	assert.Equal(t, "Kano", states[0].Name)
	require.Len(t, states[0].LGAs, 1)
	assert.Equal(t, 30, states[0].LGAs[0].ID)
}

func TestLoad_SkipsMalformedEntries(t *testing.T) {
	d := New()
	doc := `{"states": [
		null,
		"not an object",
		42,
		{"name": "No Id"},
		{"id": "abc", "name": "Bad Id"},
		{"id": 1.5, "name": "Fractional Id"},
		{"id": 4, "name": "Oyo", "slug": "oyo", "lgas": [null, {"name": "no id"}, {"id": 40, "name": "Ibadan North", "slug": "ibadan-north"}]}
	]}`
	require.NoError(t, d.Load(strings.NewReader(doc)))

	states := d.States()
	require.Len(t, states, 1)
	assert.Equal(t, "Oyo", states[0].Name)
	require.Len(t, states[0].LGAs, 1)
	assert.Equal(t, "Ibadan North", states[0].LGAs[0].Name)
}

func TestLoad_ObjectWithoutStates(t *testing.T) {
	d := New()
	require.NoError(t, d.Load(strings.NewReader(`{"version": 2}`)))
	assert.True(t, d.Loaded())
	assert.Empty(t, d.States())
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := New()
	err := d.Load(strings.NewReader(`{"states": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
	assert.False(t, d.Loaded())
}

func TestLoadFile_Missing(t *testing.T) {
	d := New()
	err := d.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geodir: open")
}

func TestLoad_Once(t *testing.T) {
	d := loadTestDirectory(t)

	require.NoError(t, d.Load(strings.NewReader(`[{"id": 99, "name": "Other", "slug": "other"}]`)))
	require.Len(t, d.States(), 3, "second load must be a no-op")

	require.NoError(t, d.LoadFile("does-not-exist.json"), "loaded directory never touches the file system again")
}

func TestLoad_ConcurrentCallersLoadOnce(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.LoadFile(filepath.Join("testdata", "states_lgas.json")))
		}()
	}
	wg.Wait()
	assert.Len(t, d.States(), 3)
}
