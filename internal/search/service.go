// Package search answers directory queries: filtered pagination, radius
// proximity, single lookups and the state/LGA reference. Inputs are
// defaulted, clamped and validated here; storage does the matching.
package search

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize inside a 32-bit OFFSET.
	MaxPage         = math.MaxInt32 / MaxPageSize
	DefaultRadiusKM = 10.0
	DefaultLimit    = 25
	MaxLimit        = 100
)

// ErrInvalidQuery marks caller errors: bad coordinates, unknown enum values,
// missing required fields.
var ErrInvalidQuery = eris.New("search: invalid query")

// Store is the storage surface the service reads and writes through.
type Store interface {
	ListStates(ctx context.Context) ([]model.State, error)
	ListLGAs(ctx context.Context, stateID int) ([]model.LGA, error)
	SearchProviders(ctx context.Context, f model.SearchFilter, page model.Page) ([]model.Provider, int, error)
	NearbyProviders(ctx context.Context, q model.NearbyQuery) ([]model.NearbyProvider, error)
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	CreateProvider(ctx context.Context, p model.Provider) (*model.Provider, error)
	UpdateProvider(ctx context.Context, id string, patch model.ProviderPatch) (*model.Provider, error)
}

// Service is the query and admin entry point shared by the CLI and the API.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a Service over st.
func NewService(st Store) *Service {
	return &Service{store: st, log: zap.L().With(zap.String("component", "search"))}
}

// Search returns one page of active providers matching f, ordered by name.
// page is clamped to [1, MaxPage]; pageSize 0 becomes DefaultPageSize and is
// clamped to [1, MaxPageSize].
func (s *Service) Search(ctx context.Context, f model.SearchFilter, page, pageSize int) (*model.SearchResult, error) {
	pg := normalizePage(page, pageSize)
	f.Category = strings.TrimSpace(f.Category)
	f.Q = strings.TrimSpace(f.Q)

	items, total, err := s.store.SearchProviders(ctx, f, pg)
	if err != nil {
		return nil, eris.Wrap(err, "search: providers")
	}
	return &model.SearchResult{Items: items, Total: total, Page: pg.Page, PageSize: pg.PageSize}, nil
}

func normalizePage(page, pageSize int) model.Page {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return model.Page{Page: clamp(page, 1, MaxPage), PageSize: clamp(pageSize, 1, MaxPageSize)}
}

// Nearby returns active providers within q.RadiusKM of (q.Lat, q.Lng),
// nearest first.
func (s *Service) Nearby(ctx context.Context, q model.NearbyQuery) ([]model.NearbyProvider, error) {
	q, err := normalizeNearby(q)
	if err != nil {
		return nil, err
	}

	out, err := s.store.NearbyProviders(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "search: nearby")
	}
	s.log.Debug("nearby query",
		zap.Float64("lat", q.Lat),
		zap.Float64("lng", q.Lng),
		zap.Float64("radius_km", q.RadiusKM),
		zap.Int("results", len(out)),
	)
	return out, nil
}

func normalizeNearby(q model.NearbyQuery) (model.NearbyQuery, error) {
	if !finite(q.Lat) || q.Lat < -90 || q.Lat > 90 {
		return q, eris.Wrapf(ErrInvalidQuery, "latitude %v out of range", q.Lat)
	}
	if !finite(q.Lng) || q.Lng < -180 || q.Lng > 180 {
		return q, eris.Wrapf(ErrInvalidQuery, "longitude %v out of range", q.Lng)
	}
	if math.IsNaN(q.RadiusKM) || math.IsInf(q.RadiusKM, 0) {
		return q, eris.Wrapf(ErrInvalidQuery, "radius %v", q.RadiusKM)
	}
	if q.RadiusKM <= 0 {
		q.RadiusKM = DefaultRadiusKM
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	q.Limit = clamp(q.Limit, 1, MaxLimit)
	q.Category = strings.TrimSpace(q.Category)
	return q, nil
}

// Get returns a provider by id. Unknown ids yield store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*model.Provider, error) {
	return s.store.GetProvider(ctx, strings.TrimSpace(id))
}

func (s *Service) States(ctx context.Context) ([]model.State, error) {
	return s.store.ListStates(ctx)
}

func (s *Service) LGAs(ctx context.Context, stateID int) ([]model.LGA, error) {
	return s.store.ListLGAs(ctx, stateID)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
