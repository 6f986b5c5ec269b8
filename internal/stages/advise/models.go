// internal/stages/advise/models.go
package advise

import "car-advisor/internal/models"

// Question is a follow-up about one car already shown to the user.
type Question struct {
	Car      models.VehicleCandidate
	Question string
	History  string
	Language string
}

// Comparison asks for a side-by-side judgement of cars already shown to the user.
type Comparison struct {
	Cars     []models.VehicleCandidate
	History  string
	Language string
}
