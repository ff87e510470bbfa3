package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/normalize"
)

// Row-level rejection reasons, written verbatim to the error report.
const (
	ReasonMissingFields = "Missing required fields"
	ReasonStateNotFound = "State not found"
	ReasonLGANotFound   = "LGA not found"
)

// Row is one source record keyed by normalize.Header(column). Values are
// trimmed.
type Row map[string]string

// NewRow zips a header with a record. Columns beyond the record are empty;
// cells beyond the header are dropped.
func NewRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		key := normalize.Header(h)
		if key == "" {
			continue
		}
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if _, dup := row[key]; dup && v == "" {
			continue
		}
		row[key] = v
	}
	return row
}

// Get returns the first non-empty value among keys.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

// RowError rejects a single source row.
type RowError struct {
	Reason string
}

func (e *RowError) Error() string { return e.Reason }

// Matcher resolves free-text state and LGA names to canonical entries.
// *geodir.Directory implements it.
type Matcher interface {
	MatchStateByName(input string) (model.State, bool)
	MatchLGAByName(stateID int, input string) (model.LGA, bool)
}

// MapRow validates a row and resolves it into a Provider ready for insert.
// Failures are *RowError values.
func MapRow(row Row, m Matcher) (model.Provider, error) {
	name := row.Get("name")
	rawType := row.Get("provider_type", "type")
	rawState := row.Get("state")
	rawLGA := row.Get("lga")
	lat, latOK := parseCoordinate(row.Get("latitude"))
	lng, lngOK := parseCoordinate(row.Get("longitude"))

	if name == "" || rawType == "" || rawState == "" || rawLGA == "" || !latOK || !lngOK {
		return model.Provider{}, &RowError{Reason: ReasonMissingFields}
	}

	state, ok := m.MatchStateByName(rawState)
	if !ok {
		return model.Provider{}, &RowError{Reason: ReasonStateNotFound}
	}
	lga, ok := m.MatchLGAByName(state.ID, rawLGA)
	if !ok {
		return model.Provider{}, &RowError{Reason: ReasonLGANotFound}
	}

	status := model.ProviderStatusActive
	if parseBool(row.Get("inactive")) {
		status = model.ProviderStatusInactive
	}

	return model.Provider{
		Name:           name,
		ProviderType:   parseProviderType(rawType),
		Category:       model.StringPtr(row.Get("category")),
		Address:        model.StringPtr(row.Get("address")),
		StateID:        state.ID,
		LGAID:          lga.ID,
		Latitude:       lat,
		Longitude:      lng,
		PhonePrimary:   model.StringPtr(row.Get("phone_primary")),
		PhoneSecondary: model.StringPtr(row.Get("phone_secondary")),
		Email:          model.StringPtr(row.Get("email")),
		ExternalID:     model.StringPtr(row.Get("external_id")),
		Source:         model.StringPtr(row.Get("source")),
		Verified:       parseBool(row.Get("verified")),
		Status:         status,
	}, nil
}

// importTypes is the lenient import vocabulary; anything else becomes OTHER.
var importTypes = map[string]model.ProviderType{
	"HOSPITAL": model.ProviderTypeHospital,
	"CLINIC":   model.ProviderTypeHospital,
	"POLICE":   model.ProviderTypePolice,
	"FRSC":     model.ProviderTypeFRSC,
	"FIRE":     model.ProviderTypeFire,
	"AGENCY":   model.ProviderTypeAgency,
	"OTHER":    model.ProviderTypeOther,
}

func parseProviderType(s string) model.ProviderType {
	key := strings.ToUpper(strings.ReplaceAll(normalize.Normalize(s), " ", "_"))
	if pt, ok := importTypes[key]; ok {
		return pt
	}
	return model.ProviderTypeOther
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// parseCoordinate accepts any finite decimal number.
func parseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
