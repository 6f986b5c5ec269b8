// internal/pipeline/models.go
package pipeline

import (
	"context"

	"car-advisor/internal/models"
	"car-advisor/internal/stages/advise"
)

type State string

const (
	StateStart     State = "START"
	StateIntent    State = "INTENT"
	StateSuggest   State = "SUGGEST"
	StateElaborate State = "ELABORATE"
	StateTranslate State = "TRANSLATE"
	StateEnrich    State = "ENRICH"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Operations name pipeline entry points in logs and metrics.
const (
	OpFindCars        = "find-cars"
	OpRefineSearch    = "refine-search"
	OpAskAboutCar     = "ask-about-car"
	OpGetAlternatives = "get-alternatives"
	OpCompareCars     = "compare-cars"
)

const (
	MinCompareCars = 2
	MaxCompareCars = 5
)

type IntentExtractor interface {
	Extract(ctx context.Context, text, language string) (models.SearchIntent, error)
}

type Suggester interface {
	Suggest(ctx context.Context, intent models.SearchIntent, contextText, pinnedHint string) (models.Suggestions, error)
}

type Elaborator interface {
	Elaborate(ctx context.Context, candidates []models.VehicleCandidate, intent models.SearchIntent) ([]models.VehicleCandidate, error)
}

type Translator interface {
	Translate(ctx context.Context, response models.SearchResponse, language string) models.SearchResponse
}

type Enricher interface {
	Enrich(ctx context.Context, candidates []models.VehicleCandidate) []models.VehicleCandidate
}

type Advisor interface {
	AskAboutCar(ctx context.Context, q advise.Question) (string, error)
	CompareCars(ctx context.Context, c advise.Comparison) (string, error)
}

// Stages bundles the stage implementations the orchestrator sequences.
type Stages struct {
	Intent    IntentExtractor
	Suggest   Suggester
	Elaborate Elaborator
	Translate Translator
	Enrich    Enricher
	Advise    Advisor
}

type FindCarsRequest struct {
	SessionID    string
	Requirements string
	Language     string
}

type RefineSearchRequest struct {
	SessionID  string
	Feedback   string
	Language   string
	PinnedCars []models.VehicleCandidate
}

type AskAboutCarRequest struct {
	SessionID string
	Car       models.VehicleCandidate
	Question  string
	Language  string
}

type GetAlternativesRequest struct {
	SessionID string
	Car       models.VehicleCandidate
	Language  string
}

type CompareCarsRequest struct {
	SessionID string
	Cars      []models.VehicleCandidate
	Language  string
}

type CompareResult struct {
	Analysis string                    `json:"analysis"`
	Cars     []models.VehicleCandidate `json:"cars"`
}
