package entities

import (
	"strings"
	"time"
)

// FacilityType is the closed set of waste-handling facility kinds
type FacilityType string

const (
	FacilityTypeRecycling FacilityType = "recycling"
	FacilityTypeBiogas    FacilityType = "biogas"
	FacilityTypeOrphanage FacilityType = "orphanage"
)

// FacilityTypes lists every facility type in display order
func FacilityTypes() []FacilityType {
	return []FacilityType{FacilityTypeRecycling, FacilityTypeBiogas, FacilityTypeOrphanage}
}

// Valid reports whether t is one of the known facility types
func (t FacilityType) Valid() bool {
	switch t {
	case FacilityTypeRecycling, FacilityTypeBiogas, FacilityTypeOrphanage:
		return true
	}
	return false
}

// ParseFacilityType parses a type filter. "all" and the empty string yield
// the empty FacilityType, which means no type filter.
func ParseFacilityType(value string) (FacilityType, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "all" {
		return "", true
	}
	t := FacilityType(v)
	return t, t.Valid()
}

// Facility represents a waste-handling facility (recycling center, biogas
// plant or orphanage accepting food donations). Clients only read facilities.
type Facility struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Type      FacilityType `json:"type" db:"type"`
	City      string       `json:"city" db:"city"`
	Address   string       `json:"address" db:"address"`
	Contact   *string      `json:"contact,omitempty" db:"contact"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// FacilitySummary holds facility counts per type for a location
type FacilitySummary struct {
	Location string               `json:"location"`
	Total    int                  `json:"total"`
	ByType   map[FacilityType]int `json:"by_type"`
}
