package geodir

import (
	"strings"

	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/normalize"
)

// MatchStateByName resolves free-text state input ("Lagos", "LAGOS STATE",
// "abuja", "FCT") to a canonical state.
//
// FCT-style input resolves to the state whose name contains "federal capital
// territory", else the state with slug "fct". Other input tries an exact
// match on the suffix-stripped normalized name, then the first state in
// document order whose name contains the query or is contained by it.
func (d *Directory) MatchStateByName(input string) (model.State, bool) {
	if input == "" {
		return model.State{}, false
	}
	query := normalize.StateName(input)
	if query == "" {
		return model.State{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if normalize.IsFCTQuery(query) {
		for _, s := range d.states {
			if strings.Contains(normalize.Normalize(s.Name), "federal capital territory") {
				return s, true
			}
		}
		for _, s := range d.states {
			if s.Slug == "fct" {
				return s, true
			}
		}
		return model.State{}, false
	}

	for _, s := range d.states {
		if normalize.StateName(s.Name) == query {
			return s, true
		}
	}

	for _, s := range d.states {
		if containsEither(normalize.StateName(s.Name), query) {
			return s, true
		}
	}
	return model.State{}, false
}

// MatchLGAByName resolves free-text LGA input within stateID, or across all
// states when stateID is 0. An exact normalized match always wins; otherwise
// the first substring match in scan order is returned.
func (d *Directory) MatchLGAByName(stateID int, input string) (model.LGA, bool) {
	if input == "" {
		return model.LGA{}, false
	}
	query := normalize.Normalize(input)
	if query == "" {
		return model.LGA{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *model.LGA
	check := func(lga *model.LGA) bool {
		n := normalize.Normalize(lga.Name)
		if n == query {
			found = lga
			return true
		}
		if found == nil && containsEither(n, query) {
			found = lga
		}
		return false
	}

	if stateID != 0 {
		for i := range d.states {
			if d.states[i].ID != stateID {
				continue
			}
			for j := range d.states[i].LGAs {
				if check(&d.states[i].LGAs[j]) {
					return *found, true
				}
			}
			break
		}
	} else {
		for i := range d.states {
			for j := range d.states[i].LGAs {
				if check(&d.states[i].LGAs[j]) {
					return *found, true
				}
			}
		}
	}

	if found == nil {
		return model.LGA{}, false
	}
	return *found, true
}

// containsEither reports bidirectional substring containment. An empty
// candidate never matches, since every string contains "".
func containsEither(candidate, query string) bool {
	if candidate == "" {
		return false
	}
	return strings.Contains(candidate, query) || strings.Contains(query, candidate)
}
