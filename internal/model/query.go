package model

// SearchFilter narrows a paginated provider search. Zero values mean "any".
// Only active providers are ever returned.
type SearchFilter struct {
	StateID      int          `json:"stateId,omitempty"`
	LGAID        int          `json:"lgaId,omitempty"`
	ProviderType ProviderType `json:"providerType,omitempty"`
	Category     string       `json:"category,omitempty"`
	Q            string       `json:"q,omitempty"`
}

// Page is a 1-indexed pagination window.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// NearbyQuery is a radius-bounded proximity search around a point.
type NearbyQuery struct {
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	RadiusKM     float64      `json:"radiusKm"`
	ProviderType ProviderType `json:"providerType,omitempty"`
	Category     string       `json:"category,omitempty"`
	Limit        int          `json:"limit"`
}

// SearchResult is one page of a provider search. Total counts every match,
// independent of the page window.
type SearchResult struct {
	Items    []Provider `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}
