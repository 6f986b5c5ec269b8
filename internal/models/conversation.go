// internal/models/conversation.go
package models

import "time"

type TurnType string

const (
	TurnFindCars        TurnType = "find-cars"
	TurnRefineSearch    TurnType = "refine-search"
	TurnAskAboutCar     TurnType = "ask-about-car"
	TurnGetAlternatives TurnType = "get-alternatives"
	TurnCompareCars     TurnType = "compare-cars"
)

// TurnPayload is implemented by the payload type of each turn kind.
type TurnPayload interface {
	TurnType() TurnType
}

type FindCarsPayload struct {
	Requirements string             `json:"requirements"`
	Intent       SearchIntent       `json:"intent"`
	Analysis     string             `json:"analysis"`
	Cars         []VehicleCandidate `json:"cars"`
}

func (FindCarsPayload) TurnType() TurnType { return TurnFindCars }

type RefineSearchPayload struct {
	Feedback   string             `json:"feedback"`
	PinnedCars []VehicleCandidate `json:"pinnedCars,omitempty"`
	Intent     SearchIntent       `json:"intent"`
	Analysis   string             `json:"analysis"`
	Cars       []VehicleCandidate `json:"cars"`
}

func (RefineSearchPayload) TurnType() TurnType { return TurnRefineSearch }

type AskAboutCarPayload struct {
	Car      VehicleCandidate `json:"car"`
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
}

func (AskAboutCarPayload) TurnType() TurnType { return TurnAskAboutCar }

type GetAlternativesPayload struct {
	Car      VehicleCandidate   `json:"car"`
	Analysis string             `json:"analysis"`
	Cars     []VehicleCandidate `json:"cars"`
}

func (GetAlternativesPayload) TurnType() TurnType { return TurnGetAlternatives }

type CompareCarsPayload struct {
	Cars     []VehicleCandidate `json:"cars"`
	Analysis string             `json:"analysis"`
}

func (CompareCarsPayload) TurnType() TurnType { return TurnCompareCars }

type Turn struct {
	Type      TurnType    `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   TurnPayload `json:"payload"`
}

// NewTurn stamps a payload with its type.
func NewTurn(payload TurnPayload, at time.Time) Turn {
	return Turn{Type: payload.TurnType(), Timestamp: at, Payload: payload}
}

type Conversation struct {
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UserLanguage string    `json:"userLanguage,omitempty"`
	Requirements string    `json:"requirements,omitempty"`
	History      []Turn    `json:"history"`
}

// Clone copies the history slice. Payloads are values written once and never mutated.
func (c Conversation) Clone() Conversation {
	out := c
	out.History = make([]Turn, len(c.History))
	copy(out.History, c.History)
	return out
}

// HasSearch reports whether any turn produced a car list.
func (c Conversation) HasSearch() bool {
	_, ok := c.LatestCars()
	return ok
}

// LatestCars returns the car list of the most recent search-producing turn.
func (c Conversation) LatestCars() ([]VehicleCandidate, bool) {
	for i := len(c.History) - 1; i >= 0; i-- {
		switch p := c.History[i].Payload.(type) {
		case FindCarsPayload:
			return p.Cars, true
		case RefineSearchPayload:
			return p.Cars, true
		case GetAlternativesPayload:
			return p.Cars, true
		}
	}
	return nil, false
}
