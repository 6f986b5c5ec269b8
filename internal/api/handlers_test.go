package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/models"
	"car-advisor/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdvisor struct {
	findReq    pipeline.FindCarsRequest
	refineReq  pipeline.RefineSearchRequest
	compareReq pipeline.CompareCarsRequest
	result     models.SearchResult
	answer     string
	err        error
	conv       models.Conversation
	reset      bool
	block      bool
}

func (f *fakeAdvisor) FindCars(ctx context.Context, req pipeline.FindCarsRequest) (models.SearchResult, error) {
	f.findReq = req
	if f.block {
		<-ctx.Done()
		return models.SearchResult{}, apperrors.NewPipelineFailedError("suggest", ctx.Err())
	}
	return f.result, f.err
}

func (f *fakeAdvisor) RefineSearch(_ context.Context, req pipeline.RefineSearchRequest) (models.SearchResult, error) {
	f.refineReq = req
	return f.result, f.err
}

func (f *fakeAdvisor) AskAboutCar(context.Context, pipeline.AskAboutCarRequest) (string, error) {
	return f.answer, f.err
}

func (f *fakeAdvisor) GetAlternatives(context.Context, pipeline.GetAlternativesRequest) (models.SearchResult, error) {
	return f.result, f.err
}

func (f *fakeAdvisor) CompareCars(_ context.Context, req pipeline.CompareCarsRequest) (pipeline.CompareResult, error) {
	f.compareReq = req
	return pipeline.CompareResult{Analysis: f.answer, Cars: req.Cars}, f.err
}

func (f *fakeAdvisor) Conversation(_ context.Context, sessionID string) (models.Conversation, error) {
	if f.conv.SessionID != sessionID {
		return models.Conversation{}, apperrors.NewConversationNotFoundError(sessionID)
	}
	return f.conv, nil
}

func (f *fakeAdvisor) Reset(context.Context, string) bool { return f.reset }

type fakeBackend struct {
	ok  bool
	err error
}

func (f fakeBackend) VerifyBackend(context.Context) (bool, error) { return f.ok, f.err }
func (f fakeBackend) Model() string                               { return "llama3" }

func newTestRouter(t *testing.T, advisor *fakeAdvisor, backend fakeBackend, timeout time.Duration) http.Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	h := NewHandler(advisor, backend, timeout, log)
	return NewRouter(h, RouterConfig{CORSAllowedOrigins: []string{"*"}}, log)
}

func doJSON(t *testing.T, h http.Handler, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func civic() models.VehicleCandidate {
	return models.VehicleCandidate{Make: "Honda", Model: "Civic", Year: "2022"}
}

// ==========================
// Search
// ==========================

func TestSearch_Success(t *testing.T) {
	advisor := &fakeAdvisor{result: models.SearchResult{
		Analysis:   "Compact cars suit your commute.",
		Cars:       []models.VehicleCandidate{civic()},
		UserMarket: "DE",
	}}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/search", "session-1",
		SearchRequest{Requirements: "cheap commuter", Language: "de"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session-1", rec.Header().Get(SessionHeader))

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, "DE", resp.UserMarket)
	require.Len(t, resp.Cars, 1)
	assert.Equal(t, "Civic", resp.Cars[0].Model)

	assert.Equal(t, "session-1", advisor.findReq.SessionID)
	assert.Equal(t, "cheap commuter", advisor.findReq.Requirements)
	assert.Equal(t, "de", advisor.findReq.Language)
}

func TestSearch_MintsSessionID(t *testing.T) {
	advisor := &fakeAdvisor{}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/search", "", SearchRequest{Requirements: "family suv"})

	require.Equal(t, http.StatusOK, rec.Code)
	minted := rec.Header().Get(SessionHeader)
	assert.NotEmpty(t, minted)
	assert.Equal(t, minted, advisor.findReq.SessionID)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Cars)
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		message string
	}{
		{name: "missing requirements", body: SearchRequest{}, message: "requirements is required"},
		{name: "malformed body", body: "{not json", message: "Request validation failed"},
		{name: "bad language", body: SearchRequest{Requirements: "suv", Language: "not a tag!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeAdvisor{}, fakeBackend{ok: true}, time.Second)
			rec := doJSON(t, router, http.MethodPost, "/api/cars/search", "s", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
		})
	}
}

func TestSearch_ServerErrorsHideDetails(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "model unavailable",
			err:    apperrors.NewPipelineFailedError("suggest", apperrors.NewModelUnavailableError(errors.New("dial tcp: refused"))),
			status: http.StatusBadGateway,
		},
		{
			name:   "internal",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeAdvisor{err: tt.err}, fakeBackend{ok: true}, time.Second)
			rec := doJSON(t, router, http.MethodPost, "/api/cars/search", "s", SearchRequest{Requirements: "suv"})

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "We could not complete your search right now. Please try again.", resp.Message)
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestSearch_RequestTimeout(t *testing.T) {
	router := newTestRouter(t, &fakeAdvisor{block: true}, fakeBackend{ok: true}, 20*time.Millisecond)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/search", "s", SearchRequest{Requirements: "suv"})

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

// ==========================
// Follow-ups
// ==========================

func TestRefine_PassesPinnedCars(t *testing.T) {
	advisor := &fakeAdvisor{result: models.SearchResult{Cars: []models.VehicleCandidate{civic()}}}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/refine", "s", RefineRequest{
		Feedback:   "something bigger",
		PinnedCars: []models.VehicleCandidate{civic()},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "something bigger", advisor.refineReq.Feedback)
	require.Len(t, advisor.refineReq.PinnedCars, 1)
	assert.Equal(t, "Honda", advisor.refineReq.PinnedCars[0].Make)
}

func TestRefine_UnknownConversation(t *testing.T) {
	advisor := &fakeAdvisor{err: apperrors.NewConversationNotFoundError("s")}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/refine", "s", RefineRequest{Feedback: "bigger"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk_ReturnsAnswer(t *testing.T) {
	advisor := &fakeAdvisor{answer: "About 6 litres per 100 km."}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/ask", "s", AskRequest{Car: civic(), Question: "Fuel use?"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "About 6 litres per 100 km.", resp.Answer)
}

func TestAsk_RequiresCar(t *testing.T) {
	router := newTestRouter(t, &fakeAdvisor{}, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/ask", "s", AskRequest{Question: "Fuel use?"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlternatives_Success(t *testing.T) {
	advisor := &fakeAdvisor{result: models.SearchResult{Analysis: "Rivals", Cars: []models.VehicleCandidate{civic()}}}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodPost, "/api/cars/alternatives", "s", AlternativesRequest{Car: civic()})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Rivals", resp.Analysis)
}

func TestCompare_CarCountBounds(t *testing.T) {
	one := []models.VehicleCandidate{civic()}
	two := []models.VehicleCandidate{civic(), {Make: "Toyota", Model: "Corolla", Year: "2022"}}
	six := make([]models.VehicleCandidate, 6)
	for i := range six {
		six[i] = civic()
	}

	tests := []struct {
		name   string
		cars   []models.VehicleCandidate
		status int
	}{
		{name: "one car", cars: one, status: http.StatusBadRequest},
		{name: "two cars", cars: two, status: http.StatusOK},
		{name: "six cars", cars: six, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advisor := &fakeAdvisor{answer: "The Corolla is thriftier."}
			router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

			rec := doJSON(t, router, http.MethodPost, "/api/cars/compare", "s", CompareRequest{Cars: tt.cars})

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var resp SearchResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "The Corolla is thriftier.", resp.Analysis)
				assert.Len(t, resp.Cars, 2)
			}
		})
	}
}

// ==========================
// Conversations
// ==========================

func TestConversation_GetAndDelete(t *testing.T) {
	advisor := &fakeAdvisor{
		conv:  models.Conversation{SessionID: "abc", Requirements: "suv"},
		reset: true,
	}
	router := newTestRouter(t, advisor, fakeBackend{ok: true}, time.Second)

	rec := doJSON(t, router, http.MethodGet, "/api/conversations/abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "suv", resp.Conversation.Requirements)

	rec = doJSON(t, router, http.MethodGet, "/api/conversations/missing", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/conversations/abc", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	advisor.reset = false
	rec = doJSON(t, router, http.MethodDelete, "/api/conversations/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Probes
// ==========================

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		backend fakeBackend
		status  int
		state   string
	}{
		{name: "healthy", backend: fakeBackend{ok: true}, status: http.StatusOK, state: "healthy"},
		{name: "model missing", backend: fakeBackend{ok: false}, status: http.StatusServiceUnavailable, state: "degraded"},
		{name: "backend down", backend: fakeBackend{err: errors.New("refused")}, status: http.StatusServiceUnavailable, state: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeAdvisor{}, tt.backend, time.Second)
			rec := doJSON(t, router, http.MethodGet, "/health", "", nil)

			assert.Equal(t, tt.status, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.state, resp.Status)
			assert.Equal(t, "llama3", resp.Model)
		})
	}
}

func TestReadyAndMetrics(t *testing.T) {
	router := newTestRouter(t, &fakeAdvisor{}, fakeBackend{ok: true}, time.Second)

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/metrics", "", nil).Code)
}

func TestRateLimit(t *testing.T) {
	log := logger.NewNoOpLogger()
	h := NewHandler(&fakeAdvisor{}, fakeBackend{ok: true}, time.Second, log)
	router := NewRouter(h, RouterConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  1,
		RateLimitWindow:    time.Minute,
	}, log)

	first := doJSON(t, router, http.MethodPost, "/api/cars/search", "s", SearchRequest{Requirements: "suv"})
	second := doJSON(t, router, http.MethodPost, "/api/cars/search", "s", SearchRequest{Requirements: "suv"})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
