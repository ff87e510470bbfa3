package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/model"
)

// CreateProvider validates an admin request and stores a single provider.
// The provider type is parsed strictly; verified defaults to false and a
// missing status to active.
func (s *Service) CreateProvider(ctx context.Context, in model.ProviderInput) (*model.Provider, error) {
	p, err := providerFromInput(in)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateProvider(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Info("provider created", zap.String("id", created.ID), zap.String("name", created.Name))
	return created, nil
}

func providerFromInput(in model.ProviderInput) (model.Provider, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Provider{}, eris.Wrap(ErrInvalidQuery, "name is required")
	}
	pt, err := model.ParseProviderType(in.ProviderType)
	if err != nil {
		return model.Provider{}, eris.Wrapf(ErrInvalidQuery, "provider type %q", in.ProviderType)
	}
	if in.StateID <= 0 || in.LGAID <= 0 {
		return model.Provider{}, eris.Wrap(ErrInvalidQuery, "stateId and lgaId are required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return model.Provider{}, eris.Wrap(ErrInvalidQuery, "latitude and longitude are required")
	}
	status := model.ProviderStatusActive
	if in.Status != nil {
		if !in.Status.Valid() {
			return model.Provider{}, eris.Wrapf(ErrInvalidQuery, "status %q", *in.Status)
		}
		status = *in.Status
	}
	lat, lng := *in.Latitude, *in.Longitude
	if !finite(lat) || lat < -90 || lat > 90 || !finite(lng) || lng < -180 || lng > 180 {
		return model.Provider{}, eris.Wrapf(ErrInvalidQuery, "coordinates (%v, %v) out of range", lat, lng)
	}

	return model.Provider{
		Name:           name,
		ProviderType:   pt,
		Category:       model.StringPtr(strings.TrimSpace(in.Category)),
		Address:        model.StringPtr(strings.TrimSpace(in.Address)),
		StateID:        in.StateID,
		LGAID:          in.LGAID,
		Latitude:       lat,
		Longitude:      lng,
		PhonePrimary:   model.StringPtr(strings.TrimSpace(in.PhonePrimary)),
		PhoneSecondary: model.StringPtr(strings.TrimSpace(in.PhoneSecondary)),
		Email:          model.StringPtr(strings.TrimSpace(in.Email)),
		ExternalID:     model.StringPtr(strings.TrimSpace(in.ExternalID)),
		Source:         model.StringPtr(strings.TrimSpace(in.Source)),
		Verified:       in.Verified,
		Status:         status,
	}, nil
}

// UpdateProvider applies the non-nil fields of patch. An unknown status is
// rejected before storage is touched.
func (s *Service) UpdateProvider(ctx context.Context, id string, patch model.ProviderPatch) (*model.Provider, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, eris.Wrapf(ErrInvalidQuery, "status %q", *patch.Status)
	}
	updated, err := s.store.UpdateProvider(ctx, strings.TrimSpace(id), patch)
	if err != nil {
		return nil, err
	}
	s.log.Info("provider updated", zap.String("id", updated.ID))
	return updated, nil
}
