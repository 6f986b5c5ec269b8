// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/conversation"
	"car-advisor/internal/models"
	"car-advisor/internal/stages/advise"
	"car-advisor/internal/stages/suggest"
)

type Orchestrator struct {
	stages     Stages
	store      conversation.Store
	tracer     observability.Tracer
	runMetrics *observability.Metrics
	logger     logger.Logger
	now        func() time.Time
	onState    func(operation string, state State)
}

type Option func(*Orchestrator)

func WithTracer(t observability.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithRunMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.runMetrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithStateHook is called on every state transition of a search run.
func WithStateHook(fn func(operation string, state State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

func New(stages Stages, store conversation.Store, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages: stages,
		store:  store,
		tracer: observability.NopTracer{},
		logger: log.With(map[string]interface{}{"component": "pipeline"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// searchRun is the input of one pass through the state machine. It lives for a single call.
type searchRun struct {
	operation   string
	sessionID   string
	language    string
	intentText  string
	contextText string
	pinnedHint  string
	pinnedKeys  map[string]bool
	excludeKey  string

	state State
}

// ==========================
// Entry points
// ==========================

// FindCars starts a fresh conversation for the session.
func (o *Orchestrator) FindCars(ctx context.Context, req FindCarsRequest) (models.SearchResult, error) {
	requirements := strings.TrimSpace(req.Requirements)
	if requirements == "" {
		return models.SearchResult{}, apperrors.NewValidationError("requirements is required")
	}

	run := &searchRun{
		operation:   OpFindCars,
		sessionID:   req.SessionID,
		language:    req.Language,
		intentText:  requirements,
		contextText: requirements,
	}
	result, err := o.search(ctx, run)
	if err != nil {
		return models.SearchResult{}, err
	}

	o.store.Delete(ctx, req.SessionID)
	o.store.GetOrCreate(ctx, req.SessionID, req.Language)
	if err := o.store.SetRequirements(ctx, req.SessionID, requirements); err != nil {
		return models.SearchResult{}, err
	}
	turn := models.NewTurn(models.FindCarsPayload{
		Requirements: requirements,
		Intent:       result.SearchIntent,
		Analysis:     result.Analysis,
		Cars:         models.CloneCandidates(result.Cars),
	}, o.now())
	if err := o.store.AppendTurn(ctx, req.SessionID, turn); err != nil {
		return models.SearchResult{}, err
	}
	return result, nil
}

// RefineSearch re-runs the pipeline on the conversation so far plus the new feedback.
func (o *Orchestrator) RefineSearch(ctx context.Context, req RefineSearchRequest) (models.SearchResult, error) {
	feedback := strings.TrimSpace(req.Feedback)
	if feedback == "" {
		return models.SearchResult{}, apperrors.NewValidationError("feedback is required")
	}
	conv, err := o.requireSearch(ctx, req.SessionID)
	if err != nil {
		return models.SearchResult{}, err
	}
	language := pickLanguage(req.Language, conv)

	intentText := refinementText(conversation.BuildContext(conv), feedback)
	run := &searchRun{
		operation:   OpRefineSearch,
		sessionID:   req.SessionID,
		language:    language,
		intentText:  intentText,
		contextText: intentText,
		pinnedHint:  suggest.PinnedHint(req.PinnedCars),
		pinnedKeys:  pinnedKeySet(req.PinnedCars),
	}
	result, err := o.search(ctx, run)
	if err != nil {
		return models.SearchResult{}, err
	}

	turn := models.NewTurn(models.RefineSearchPayload{
		Feedback:   feedback,
		PinnedCars: models.CloneCandidates(req.PinnedCars),
		Intent:     result.SearchIntent,
		Analysis:   result.Analysis,
		Cars:       models.CloneCandidates(result.Cars),
	}, o.now())
	if err := o.appendTurn(ctx, req.SessionID, language, turn); err != nil {
		return models.SearchResult{}, err
	}
	return result, nil
}

// GetAlternatives searches for cars comparable to one already shown, leaving that car out.
func (o *Orchestrator) GetAlternatives(ctx context.Context, req GetAlternativesRequest) (models.SearchResult, error) {
	if err := requireIdentity(req.Car); err != nil {
		return models.SearchResult{}, err
	}
	conv, err := o.requireSearch(ctx, req.SessionID)
	if err != nil {
		return models.SearchResult{}, err
	}
	language := pickLanguage(req.Language, conv)

	feedback := fmt.Sprintf("Suggest alternatives to the %s that meet the same needs. Do not include the %s itself.",
		req.Car.DisplayName(), req.Car.DisplayName())
	intentText := refinementText(conversation.BuildContext(conv), feedback)
	run := &searchRun{
		operation:   OpGetAlternatives,
		sessionID:   req.SessionID,
		language:    language,
		intentText:  intentText,
		contextText: intentText,
		excludeKey:  req.Car.Key(),
	}
	result, err := o.search(ctx, run)
	if err != nil {
		return models.SearchResult{}, err
	}

	turn := models.NewTurn(models.GetAlternativesPayload{
		Car:      req.Car.Clone(),
		Analysis: result.Analysis,
		Cars:     models.CloneCandidates(result.Cars),
	}, o.now())
	if err := o.appendTurn(ctx, req.SessionID, language, turn); err != nil {
		return models.SearchResult{}, err
	}
	return result, nil
}

// AskAboutCar answers a free-text question about one car in the context of the conversation.
func (o *Orchestrator) AskAboutCar(ctx context.Context, req AskAboutCarRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", apperrors.NewValidationError("question is required")
	}
	if err := requireIdentity(req.Car); err != nil {
		return "", err
	}
	conv, err := o.requireSearch(ctx, req.SessionID)
	if err != nil {
		return "", err
	}
	language := pickLanguage(req.Language, conv)

	start := o.now()
	answer, err := o.stages.Advise.AskAboutCar(ctx, advise.Question{
		Car:      req.Car,
		Question: question,
		History:  conversation.BuildContext(conv),
		Language: language,
	})
	if err != nil {
		o.finish(ctx, OpAskAboutCar, start, 0, err)
		return "", apperrors.NewPipelineFailedError(OpAskAboutCar, err)
	}

	turn := models.NewTurn(models.AskAboutCarPayload{
		Car:      req.Car.Clone(),
		Question: question,
		Answer:   answer,
	}, o.now())
	if err := o.appendTurn(ctx, req.SessionID, language, turn); err != nil {
		return "", err
	}
	o.finish(ctx, OpAskAboutCar, start, 0, nil)
	return answer, nil
}

// CompareCars produces a plain-text comparison of two to five cars.
func (o *Orchestrator) CompareCars(ctx context.Context, req CompareCarsRequest) (CompareResult, error) {
	if n := len(req.Cars); n < MinCompareCars || n > MaxCompareCars {
		return CompareResult{}, apperrors.NewValidationError(
			fmt.Sprintf("between %d and %d cars are required, got %d", MinCompareCars, MaxCompareCars, n))
	}
	for _, car := range req.Cars {
		if err := requireIdentity(car); err != nil {
			return CompareResult{}, err
		}
	}
	conv, err := o.requireSearch(ctx, req.SessionID)
	if err != nil {
		return CompareResult{}, err
	}
	language := pickLanguage(req.Language, conv)

	start := o.now()
	analysis, err := o.stages.Advise.CompareCars(ctx, advise.Comparison{
		Cars:     req.Cars,
		History:  conversation.BuildContext(conv),
		Language: language,
	})
	if err != nil {
		o.finish(ctx, OpCompareCars, start, 0, err)
		return CompareResult{}, apperrors.NewPipelineFailedError(OpCompareCars, err)
	}

	cars := models.CloneCandidates(req.Cars)
	turn := models.NewTurn(models.CompareCarsPayload{Cars: cars, Analysis: analysis}, o.now())
	if err := o.appendTurn(ctx, req.SessionID, language, turn); err != nil {
		return CompareResult{}, err
	}
	o.finish(ctx, OpCompareCars, start, len(cars), nil)
	return CompareResult{Analysis: analysis, Cars: models.CloneCandidates(req.Cars)}, nil
}

// Conversation exposes a snapshot of the session for the API layer.
func (o *Orchestrator) Conversation(ctx context.Context, sessionID string) (models.Conversation, error) {
	conv, ok := o.store.Get(ctx, sessionID)
	if !ok {
		return models.Conversation{}, apperrors.NewConversationNotFoundError(sessionID)
	}
	return conv, nil
}

// Reset forgets the session. It reports whether anything was stored.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) bool {
	return o.store.Delete(ctx, sessionID)
}

// ==========================
// State machine
// ==========================

func (o *Orchestrator) search(ctx context.Context, run *searchRun) (models.SearchResult, error) {
	start := o.now()
	log := o.logger.With(map[string]interface{}{
		"operation": run.operation,
		"sessionId": run.sessionID,
	})

	ctx, span := o.tracer.Start(ctx, "pipeline."+run.operation, map[string]interface{}{
		"sessionId": run.sessionID,
		"language":  run.language,
	})

	o.enter(run, StateStart)
	result, err := o.advance(ctx, run, log)
	if err != nil {
		failedAt := run.state
		o.enter(run, StateFailed)
		span.Fail(err)
		o.finish(ctx, run.operation, start, 0, err)
		log.Error("pipeline failed", map[string]interface{}{
			"state": string(failedAt),
			"error": err.Error(),
		})
		return models.SearchResult{}, apperrors.NewPipelineFailedError(strings.ToLower(string(failedAt)), err)
	}

	o.enter(run, StateDone)
	span.End(map[string]interface{}{"cars": len(result.Cars)})
	o.finish(ctx, run.operation, start, len(result.Cars), nil)
	log.Info("pipeline completed", map[string]interface{}{
		"cars":       len(result.Cars),
		"durationMs": o.now().Sub(start).Milliseconds(),
	})
	return result, nil
}

// advance walks INTENT, SUGGEST, ELABORATE, TRANSLATE, ENRICH. Only the first three can fail.
func (o *Orchestrator) advance(ctx context.Context, run *searchRun, log logger.Logger) (models.SearchResult, error) {
	o.enter(run, StateIntent)
	intent, err := o.stages.Intent.Extract(ctx, run.intentText, run.language)
	if err != nil {
		return models.SearchResult{}, err
	}

	o.enter(run, StateSuggest)
	suggestions, err := o.stages.Suggest.Suggest(ctx, intent, run.contextText, run.pinnedHint)
	if err != nil {
		return models.SearchResult{}, err
	}
	cars := MergePinned(suggestions, run.pinnedKeys)
	if run.excludeKey != "" {
		cars = exclude(cars, run.excludeKey)
	}
	log.Debug("suggestions merged", map[string]interface{}{
		"choices":    len(suggestions.Choices),
		"pinnedCars": len(suggestions.PinnedCars),
		"merged":     len(cars),
	})

	o.enter(run, StateElaborate)
	cars, err = o.stages.Elaborate.Elaborate(ctx, cars, intent)
	if err != nil {
		return models.SearchResult{}, err
	}

	o.enter(run, StateTranslate)
	translated := o.stages.Translate.Translate(ctx, models.SearchResponse{
		Analysis:   suggestions.Analysis,
		Cars:       cars,
		UserMarket: suggestions.UserMarket,
	}, run.language)

	o.enter(run, StateEnrich)
	enriched := o.stages.Enrich.Enrich(ctx, translated.Cars)

	return models.SearchResult{
		SearchIntent: intent,
		Suggestions:  suggestions,
		Analysis:     translated.Analysis,
		Cars:         enriched,
		UserMarket:   translated.UserMarket,
	}, nil
}

func (o *Orchestrator) enter(run *searchRun, state State) {
	run.state = state
	if o.onState != nil {
		o.onState(run.operation, state)
	}
}

func (o *Orchestrator) finish(ctx context.Context, operation string, start time.Time, cars int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	metrics.PipelineRuns.WithLabelValues(operation, outcome).Inc()
	o.runMetrics.RecordRun(ctx, operation, outcome, o.now().Sub(start), cars)
}

// ==========================
// Helpers
// ==========================

func (o *Orchestrator) requireSearch(ctx context.Context, sessionID string) (models.Conversation, error) {
	conv, ok := o.store.Get(ctx, sessionID)
	if !ok || !conv.HasSearch() {
		return models.Conversation{}, apperrors.NewConversationNotFoundError(sessionID)
	}
	return conv, nil
}

// appendTurn recreates the conversation if the sweep removed it while the pipeline ran.
func (o *Orchestrator) appendTurn(ctx context.Context, sessionID, language string, turn models.Turn) error {
	if err := o.store.AppendTurn(ctx, sessionID, turn); err == nil {
		return nil
	}
	o.logger.Warn("conversation expired during request, starting a new one", map[string]interface{}{
		"sessionId": sessionID,
	})
	o.store.GetOrCreate(ctx, sessionID, language)
	return o.store.AppendTurn(ctx, sessionID, turn)
}

func refinementText(history, feedback string) string {
	return fmt.Sprintf("Conversation History:\n%s\n\nLatest Feedback: %s", history, feedback)
}

func pickLanguage(requested string, conv models.Conversation) string {
	if requested != "" {
		return requested
	}
	return conv.UserLanguage
}

func requireIdentity(car models.VehicleCandidate) error {
	if strings.TrimSpace(car.Make) == "" || strings.TrimSpace(car.Model) == "" {
		return apperrors.NewValidationError("car make and model are required")
	}
	return nil
}
