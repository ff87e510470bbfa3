package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ProviderType classifies an emergency-service provider.
type ProviderType string

const (
	ProviderTypeHospital ProviderType = "HOSPITAL"
	ProviderTypePolice   ProviderType = "POLICE"
	ProviderTypeFRSC     ProviderType = "FRSC"
	ProviderTypeFire     ProviderType = "FIRE"
	ProviderTypeAgency   ProviderType = "AGENCY"
	ProviderTypeOther    ProviderType = "OTHER"
)

// ProviderTypes lists every valid provider type.
var ProviderTypes = []ProviderType{
	ProviderTypeHospital,
	ProviderTypePolice,
	ProviderTypeFRSC,
	ProviderTypeFire,
	ProviderTypeAgency,
	ProviderTypeOther,
}

// ErrInvalidProviderType is returned by ParseProviderType for unknown values.
var ErrInvalidProviderType = eris.New("model: invalid provider type")

// ParseProviderType strictly parses an API or CLI supplied provider type.
// Matching is case-insensitive; unknown values are rejected.
func ParseProviderType(s string) (ProviderType, error) {
	up := ProviderType(strings.ToUpper(strings.TrimSpace(s)))
	for _, pt := range ProviderTypes {
		if pt == up {
			return pt, nil
		}
	}
	return "", eris.Wrapf(ErrInvalidProviderType, "%q", s)
}

// ProviderStatus is the lifecycle state of a provider. Providers are never
// deleted, only flipped to inactive.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusInactive ProviderStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ProviderStatus) Valid() bool {
	return s == ProviderStatusActive || s == ProviderStatusInactive
}

// Provider is a persisted emergency-service provider. The tuple
// (Name, ProviderType, LGAID, Latitude, Longitude) is unique.
type Provider struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	ProviderType   ProviderType   `json:"providerType"`
	Category       *string        `json:"category"`
	Address        *string        `json:"address"`
	StateID        int            `json:"stateId"`
	LGAID          int            `json:"lgaId"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	PhonePrimary   *string        `json:"phonePrimary"`
	PhoneSecondary *string        `json:"phoneSecondary"`
	Email          *string        `json:"email"`
	ExternalID     *string        `json:"externalId"`
	Source         *string        `json:"source"`
	Verified       bool           `json:"verified"`
	Status         ProviderStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt,omitzero"`
	UpdatedAt      time.Time      `json:"updatedAt,omitzero"`
}

// NearbyProvider is a Provider annotated with its geodesic distance from the
// query point.
type NearbyProvider struct {
	Provider
	DistanceKM float64 `json:"distanceKm"`
}

// ProviderPatch holds the mutable fields of a provider. Nil fields are left
// untouched.
type ProviderPatch struct {
	PhonePrimary   *string         `json:"phonePrimary,omitempty"`
	PhoneSecondary *string         `json:"phoneSecondary,omitempty"`
	Verified       *bool           `json:"verified,omitempty"`
	Status         *ProviderStatus `json:"status,omitempty"`
	Category       *string         `json:"category,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProviderPatch) Empty() bool {
	return p.PhonePrimary == nil && p.PhoneSecondary == nil &&
		p.Verified == nil && p.Status == nil && p.Category == nil
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProviderInput is an admin request to create a single provider. ProviderType
// is parsed strictly; Latitude and Longitude are pointers so that a missing
// coordinate is distinguishable from zero.
type ProviderInput struct {
	Name           string          `json:"name"`
	ProviderType   string          `json:"providerType"`
	Category       string          `json:"category,omitempty"`
	Address        string          `json:"address,omitempty"`
	StateID        int             `json:"stateId"`
	LGAID          int             `json:"lgaId"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	PhonePrimary   string          `json:"phonePrimary,omitempty"`
	PhoneSecondary string          `json:"phoneSecondary,omitempty"`
	Email          string          `json:"email,omitempty"`
	ExternalID     string          `json:"externalId,omitempty"`
	Source         string          `json:"source,omitempty"`
	Verified       bool            `json:"verified,omitempty"`
	Status         *ProviderStatus `json:"status,omitempty"` // nil means active
}
