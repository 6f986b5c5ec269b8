// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/validation"
	"car-advisor/internal/models"
	"car-advisor/internal/pipeline"

	"github.com/go-chi/chi/v5"
)

// Advisor is the pipeline surface the HTTP layer drives.
type Advisor interface {
	FindCars(ctx context.Context, req pipeline.FindCarsRequest) (models.SearchResult, error)
	RefineSearch(ctx context.Context, req pipeline.RefineSearchRequest) (models.SearchResult, error)
	AskAboutCar(ctx context.Context, req pipeline.AskAboutCarRequest) (string, error)
	GetAlternatives(ctx context.Context, req pipeline.GetAlternativesRequest) (models.SearchResult, error)
	CompareCars(ctx context.Context, req pipeline.CompareCarsRequest) (pipeline.CompareResult, error)
	Conversation(ctx context.Context, sessionID string) (models.Conversation, error)
	Reset(ctx context.Context, sessionID string) bool
}

// BackendChecker reports whether the model backend serves the configured model.
type BackendChecker interface {
	VerifyBackend(ctx context.Context) (bool, error)
	Model() string
}

const maxBodyBytes = 1 << 20

type Handler struct {
	advisor        Advisor
	backend        BackendChecker
	requestTimeout time.Duration
	logger         logger.Logger
}

func NewHandler(advisor Advisor, backend BackendChecker, requestTimeout time.Duration, log logger.Logger) *Handler {
	return &Handler{
		advisor:        advisor,
		backend:        backend,
		requestTimeout: requestTimeout,
		logger:         log.With(map[string]interface{}{"component": "api"}),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	sessionID := SessionID(r.Context())
	result, err := h.advisor.FindCars(ctx, pipeline.FindCarsRequest{
		SessionID:    sessionID,
		Requirements: req.Requirements,
		Language:     req.Language,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(sessionID, result))
}

func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	sessionID := SessionID(r.Context())
	result, err := h.advisor.RefineSearch(ctx, pipeline.RefineSearchRequest{
		SessionID:  sessionID,
		Feedback:   req.Feedback,
		Language:   req.Language,
		PinnedCars: req.PinnedCars,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(sessionID, result))
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	sessionID := SessionID(r.Context())
	answer, err := h.advisor.AskAboutCar(ctx, pipeline.AskAboutCarRequest{
		SessionID: sessionID,
		Car:       req.Car,
		Question:  req.Question,
		Language:  req.Language,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Success: true, SessionID: sessionID, Answer: answer})
}

func (h *Handler) Alternatives(w http.ResponseWriter, r *http.Request) {
	var req AlternativesRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	sessionID := SessionID(r.Context())
	result, err := h.advisor.GetAlternatives(ctx, pipeline.GetAlternativesRequest{
		SessionID: sessionID,
		Car:       req.Car,
		Language:  req.Language,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(sessionID, result))
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	sessionID := SessionID(r.Context())
	result, err := h.advisor.CompareCars(ctx, pipeline.CompareCarsRequest{
		SessionID: sessionID,
		Cars:      req.Cars,
		Language:  req.Language,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Success:   true,
		SessionID: sessionID,
		Analysis:  result.Analysis,
		Cars:      result.Cars,
	})
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.advisor.Conversation(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Success: true, Conversation: conv})
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if !h.advisor.Reset(r.Context(), sessionID) {
		h.writeError(w, r, apperrors.NewConversationNotFoundError(sessionID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ok, err := h.backend.VerifyBackend(ctx)
	resp := HealthResponse{Status: "healthy", Model: h.backend.Model()}
	status := http.StatusOK
	if err != nil || !ok {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
		if err != nil {
			resp.Error = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

// ==========================
// Helpers
// ==========================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, apperrors.NewValidationError("request body must be valid JSON: "+err.Error()))
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.requestTimeout)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr)

	fields := map[string]interface{}{
		"path":      r.URL.Path,
		"sessionId": SessionID(r.Context()),
		"code":      string(stdErr.Code),
		"error":     err.Error(),
	}
	if status >= 500 {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Warn("request rejected", fields)
	}

	writeJSON(w, status, ErrorResponse{Success: false, Message: apperrors.PublicMessage(stdErr)})
}

func searchResponse(sessionID string, result models.SearchResult) SearchResponse {
	cars := result.Cars
	if cars == nil {
		cars = []models.VehicleCandidate{}
	}
	return SearchResponse{
		Success:    true,
		SessionID:  sessionID,
		Analysis:   result.Analysis,
		Cars:       cars,
		UserMarket: result.UserMarket,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
