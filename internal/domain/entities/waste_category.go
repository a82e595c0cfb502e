package entities

// WasteCategory maps a kind of event waste to the facility type that accepts it
type WasteCategory struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	FacilityType FacilityType `json:"facility_type"`
}

// WasteCategories returns the waste categories shown on the dashboard
func WasteCategories() []WasteCategory {
	return []WasteCategory{
		{ID: "recyclable", Name: "Recyclable Waste", FacilityType: FacilityTypeRecycling},
		{ID: "leftover_food", Name: "Leftover Food", FacilityType: FacilityTypeOrphanage},
		{ID: "organic", Name: "Organic Waste", FacilityType: FacilityTypeBiogas},
	}
}
