// Package model defines the domain types shared by the directory, the import
// pipeline, the stores and the search service.
package model

// State is a first-level administrative unit. ID is externally assigned by
// the reference document and is the join key for LGAs and providers.
type State struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	LGAs        []LGA  `json:"lgas,omitempty"`
}

// LGA is a local government area nested under a State.
type LGA struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	StateID int    `json:"stateId"`
}
