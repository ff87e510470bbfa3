// Package geodir holds the canonical state/LGA reference hierarchy in memory
// and resolves free-text names to canonical ids.
package geodir

import (
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/normalize"
)

// Directory is the process-wide reference of states and their LGAs. It is
// loaded once and is read-only afterwards; construct one with New and pass
// it to every consumer.
type Directory struct {
	mu     sync.RWMutex
	loaded bool
	states []model.State
}

// New returns an empty, unloaded Directory.
func New() *Directory {
	return &Directory{}
}

// LoadFile loads the reference document at path. It is a no-op when the
// directory is already loaded.
func (d *Directory) LoadFile(path string) error {
	if d.Loaded() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "geodir: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return d.Load(f)
}

// Load parses a reference document from r. The document is either an array
// of state entries or an object with a "states" array. Malformed entries are
// skipped. Load is a no-op when the directory is already loaded.
func (d *Directory) Load(r io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrap(err, "geodir: read reference document")
	}

	states, err := parseStates(data)
	if err != nil {
		return err
	}

	d.states = states
	d.loaded = true

	lgas := 0
	for _, s := range states {
		lgas += len(s.LGAs)
	}
	zap.L().Debug("geodir: reference loaded",
		zap.Int("states", len(states)),
		zap.Int("lgas", lgas),
	)
	return nil
}

// Loaded reports whether a reference document has been loaded.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// States returns a copy of the loaded states in document order.
func (d *Directory) States() []model.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.states == nil {
		return nil
	}
	out := make([]model.State, len(d.states))
	for i, s := range d.states {
		s.LGAs = slices.Clone(s.LGAs)
		out[i] = s
	}
	return out
}

// LGAs returns a copy of the LGAs of the given state, or nil for an unknown
// state.
func (d *Directory) LGAs(stateID int) []model.LGA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.states {
		if d.states[i].ID == stateID {
			return slices.Clone(d.states[i].LGAs)
		}
	}
	return nil
}

// Counts returns the number of loaded states and LGAs.
func (d *Directory) Counts() (states, lgas int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.states {
		lgas += len(s.LGAs)
	}
	return len(d.states), lgas
}

func parseStates(data []byte) ([]model.State, error) {
	if !gjson.ValidBytes(data) {
		return nil, eris.New("geodir: reference document is not valid JSON")
	}

	doc := gjson.ParseBytes(data)
	var entries []gjson.Result
	switch {
	case doc.IsArray():
		entries = doc.Array()
	case doc.IsObject():
		if list := doc.Get("states"); list.IsArray() {
			entries = list.Array()
		}
	}

	states := make([]model.State, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsObject() {
			continue
		}
		id, ok := parseID(entry.Get("id"))
		if !ok {
			zap.L().Debug("geodir: skipping state without usable id", zap.String("entry", truncate(entry.Raw, 80)))
			continue
		}

		name := entry.Get("name").String()
		display := entry.Get("display_name").String()
		if display == "" {
			display = name
		}

		state := model.State{
			ID:          id,
			Name:        name,
			Slug:        entry.Get("slug").String(),
			DisplayName: normalize.EnsureStateSuffix(display),
		}

		for _, lga := range entry.Get("lgas").Array() {
			if !lga.IsObject() {
				continue
			}
			lgaID, ok := parseID(lga.Get("id"))
			if !ok {
				continue
			}
			state.LGAs = append(state.LGAs, model.LGA{
				ID:      lgaID,
				Name:    lga.Get("name").String(),
				Slug:    lga.Get("slug").String(),
				StateID: id,
			})
		}

		states = append(states, state)
	}
	return states, nil
}

// parseID accepts integral JSON numbers and numeric strings.
func parseID(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
