// Package store persists the state/LGA hierarchy and providers. PostgresStore
// targets PostGIS; SQLiteStore is a single-file store for local use and tests
// that computes geodesic distance in Go.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lifeline-ng/lifeline/internal/model"
)

var (
	// ErrNotFound is returned when a provider id does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate is returned when a created provider collides with the
	// (name, provider_type, lga_id, latitude, longitude) identity of another.
	ErrDuplicate = eris.New("store: duplicate provider")
)

// Store defines the persistence interface for the provider directory.
type Store interface {
	// Hierarchy
	SyncHierarchy(ctx context.Context, states []model.State) error
	ListStates(ctx context.Context) ([]model.State, error)
	ListLGAs(ctx context.Context, stateID int) ([]model.LGA, error)

	// Providers
	// InsertProviders inserts the batch, ignoring rows whose
	// (name, provider_type, lga_id, latitude, longitude) already exists, and
	// returns how many rows were actually inserted.
	InsertProviders(ctx context.Context, providers []model.Provider) (int64, error)
	SearchProviders(ctx context.Context, filter model.SearchFilter, page model.Page) ([]model.Provider, int, error)
	NearbyProviders(ctx context.Context, q model.NearbyQuery) ([]model.NearbyProvider, error)
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	CreateProvider(ctx context.Context, p model.Provider) (*model.Provider, error)
	UpdateProvider(ctx context.Context, id string, patch model.ProviderPatch) (*model.Provider, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// providerColumns is the insert column order shared by both stores.
var providerColumns = []string{
	"name", "provider_type", "category", "address", "state_id", "lga_id",
	"latitude", "longitude", "phone_primary", "phone_secondary", "email",
	"external_id", "source", "verified", "status",
}

// selectColumns is the read column order matched by scanProvider.
const selectColumns = `id, name, provider_type, category, address, state_id, lga_id,
	latitude, longitude, phone_primary, phone_secondary, email, external_id, source,
	verified, status, created_at, updated_at`

func providerValues(p model.Provider) []any {
	status := p.Status
	if status == "" {
		status = model.ProviderStatusActive
	}
	return []any{
		p.Name, string(p.ProviderType), p.Category, p.Address, p.StateID, p.LGAID,
		p.Latitude, p.Longitude, p.PhonePrimary, p.PhoneSecondary, p.Email,
		p.ExternalID, p.Source, p.Verified, string(status),
	}
}

type scannable interface {
	Scan(dest ...any) error
}

// scanProvider reads selectColumns, plus any extra trailing destinations.
func scanProvider(row scannable, extra ...any) (model.Provider, error) {
	var (
		p            model.Provider
		providerType string
		status       string
	)
	dest := []any{
		&p.ID, &p.Name, &providerType, &p.Category, &p.Address, &p.StateID, &p.LGAID,
		&p.Latitude, &p.Longitude, &p.PhonePrimary, &p.PhoneSecondary, &p.Email,
		&p.ExternalID, &p.Source, &p.Verified, &status, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Provider{}, err
	}
	p.ProviderType = model.ProviderType(providerType)
	p.Status = model.ProviderStatus(status)
	return p, nil
}

// dedupeStates keeps the last occurrence of each state and LGA id, preserving
// first-seen order. Conflicting ids inside one upsert statement are an error
// in Postgres.
func dedupeStates(states []model.State) ([]model.State, []model.LGA) {
	stateIdx := make(map[int]int, len(states))
	var outStates []model.State
	lgaIdx := make(map[int]int)
	var outLGAs []model.LGA

	for _, st := range states {
		if i, ok := stateIdx[st.ID]; ok {
			outStates[i] = st
		} else {
			stateIdx[st.ID] = len(outStates)
			outStates = append(outStates, st)
		}
		for _, l := range st.LGAs {
			l.StateID = st.ID
			if i, ok := lgaIdx[l.ID]; ok {
				outLGAs[i] = l
			} else {
				lgaIdx[l.ID] = len(outLGAs)
				outLGAs = append(outLGAs, l)
			}
		}
	}
	return outStates, outLGAs
}

// likePattern wraps q for a case-insensitive substring LIKE, escaping the
// wildcard characters with a backslash.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// patchSet builds "col = ?" assignments for the non-nil patch fields.
func patchSet(patch model.ProviderPatch) ([]string, []any) {
	var cols []string
	var args []any
	if patch.PhonePrimary != nil {
		cols = append(cols, "phone_primary")
		args = append(args, model.StringPtr(*patch.PhonePrimary))
	}
	if patch.PhoneSecondary != nil {
		cols = append(cols, "phone_secondary")
		args = append(args, model.StringPtr(*patch.PhoneSecondary))
	}
	if patch.Verified != nil {
		cols = append(cols, "verified")
		args = append(args, *patch.Verified)
	}
	if patch.Status != nil {
		cols = append(cols, "status")
		args = append(args, string(*patch.Status))
	}
	if patch.Category != nil {
		cols = append(cols, "category")
		args = append(args, model.StringPtr(*patch.Category))
	}
	return cols, args
}
