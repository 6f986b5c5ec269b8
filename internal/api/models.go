// internal/api/models.go
package api

import "car-advisor/internal/models"

type SearchRequest struct {
	Requirements string `json:"requirements" validate:"required,max=4000"`
	Language     string `json:"language" validate:"omitempty,bcp47_language_tag"`
}

type RefineRequest struct {
	Feedback   string                    `json:"feedback" validate:"required,max=4000"`
	Language   string                    `json:"language" validate:"omitempty,bcp47_language_tag"`
	PinnedCars []models.VehicleCandidate `json:"pinnedCars" validate:"max=10"`
}

type AskRequest struct {
	Car      models.VehicleCandidate `json:"car" validate:"required"`
	Question string                  `json:"question" validate:"required,max=2000"`
	Language string                  `json:"language" validate:"omitempty,bcp47_language_tag"`
}

type AlternativesRequest struct {
	Car      models.VehicleCandidate `json:"car" validate:"required"`
	Language string                  `json:"language" validate:"omitempty,bcp47_language_tag"`
}

type CompareRequest struct {
	Cars     []models.VehicleCandidate `json:"cars" validate:"required,min=2,max=5"`
	Language string                    `json:"language" validate:"omitempty,bcp47_language_tag"`
}

type SearchResponse struct {
	Success    bool                      `json:"success"`
	SessionID  string                    `json:"sessionId"`
	Analysis   string                    `json:"analysis"`
	Cars       []models.VehicleCandidate `json:"cars"`
	UserMarket string                    `json:"userMarket,omitempty"`
}

type AskResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Answer    string `json:"answer"`
}

type ConversationResponse struct {
	Success      bool                `json:"success"`
	Conversation models.Conversation `json:"conversation"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}
