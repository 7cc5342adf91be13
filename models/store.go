package models

// StoreID is the opaque facility key shared by the warehouse and the API.
type StoreID string

// Store is a facility taking part in the analysis.
type Store struct {
	ID       StoreID `json:"store_id"`
	Name     string  `json:"store_name"`
	Address  string  `json:"address"`
	City     string  `json:"city"`
	State    string  `json:"state"`
	ZIP      string  `json:"zip"`
	Distance float64 `json:"distance"`

	Metadata StoreMetadata `json:"metadata"`
}

// StoreMetadata is operator supplied and optional.
type StoreMetadata struct {
	YearBuilt     *int `json:"year_built,omitempty"`
	SquareFootage *int `json:"square_footage,omitempty"`
}

// StoreIndex returns the stores keyed by ID.
func StoreIndex(stores []Store) map[StoreID]Store {
	idx := make(map[StoreID]Store, len(stores))
	for _, s := range stores {
		idx[s.ID] = s
	}
	return idx
}

// StoreIDs returns the IDs in input order.
func StoreIDs(stores []Store) []StoreID {
	ids := make([]StoreID, 0, len(stores))
	for _, s := range stores {
		ids = append(ids, s.ID)
	}
	return ids
}
