package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/lifeline-ng/lifeline/internal/model"
)

// queryParams parses query-string values, keeping the first failure.
type queryParams struct {
	values url.Values
	err    error
}

func (q *queryParams) get(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryParams) intParam(key string) int {
	raw := q.get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil && q.err == nil {
		q.err = badRequest("invalid_"+key, key+" must be an integer")
	}
	return v
}

func (q *queryParams) floatParam(key string) float64 {
	raw := q.get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && q.err == nil {
		q.err = badRequest("invalid_"+key, key+" must be a number")
	}
	return v
}

func (q *queryParams) providerType(key string) model.ProviderType {
	raw := q.get(key)
	if raw == "" {
		return ""
	}
	pt, err := model.ParseProviderType(raw)
	if err != nil && q.err == nil {
		q.err = badRequest("invalid_provider_type", "Invalid providerType")
	}
	return pt
}
