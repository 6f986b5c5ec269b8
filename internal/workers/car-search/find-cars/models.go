// internal/workers/car-search/find-cars/models.go
package findcars

import "car-advisor/internal/models"

type Input struct {
	SessionID    string                    `json:"sessionId" validate:"required,max=128"`
	Requirements string                    `json:"requirements" validate:"max=4000"`
	Feedback     string                    `json:"feedback" validate:"max=4000"`
	Language     string                    `json:"language" validate:"omitempty,bcp47_language_tag"`
	PinnedCars   []models.VehicleCandidate `json:"pinnedCars" validate:"max=10"`
}

type Output struct {
	Success    bool                      `json:"success"`
	Analysis   string                    `json:"analysis"`
	Cars       []models.VehicleCandidate `json:"cars"`
	UserMarket string                    `json:"userMarket,omitempty"`
}
