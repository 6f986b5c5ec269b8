// internal/models/search.go
package models

// Suggestions is the raw output of the suggestion stage.
type Suggestions struct {
	Analysis   string             `json:"analysis"`
	Choices    []VehicleCandidate `json:"choices"`
	PinnedCars []VehicleCandidate `json:"pinnedCars,omitempty"`
	UserMarket string             `json:"userMarket,omitempty"`
}

// SearchResponse is the unit round-tripped through translation.
type SearchResponse struct {
	Analysis   string             `json:"analysis"`
	Cars       []VehicleCandidate `json:"cars"`
	UserMarket string             `json:"userMarket,omitempty"`
}

func (r SearchResponse) Clone() SearchResponse {
	r.Cars = CloneCandidates(r.Cars)
	return r
}

// SearchResult is what a completed pipeline run returns.
type SearchResult struct {
	SearchIntent SearchIntent       `json:"searchIntent"`
	Suggestions  Suggestions        `json:"suggestions"`
	Analysis     string             `json:"analysis"`
	Cars         []VehicleCandidate `json:"cars"`
	UserMarket   string             `json:"userMarket,omitempty"`
}
