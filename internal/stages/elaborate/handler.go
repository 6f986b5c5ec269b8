// internal/stages/elaborate/handler.go
package elaborate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages"

	"golang.org/x/sync/errgroup"
)

const StageName = "elaborate"

var ErrElaborationFailed = errors.New("ELABORATION_FAILED")

type Handler struct {
	config  *Config
	llm     llm.Invoker
	prompts prompts.Source
	tracer  observability.Tracer
	logger  logger.Logger
	now     func() time.Time
}

func NewHandler(config *Config, invoker llm.Invoker, source prompts.Source, tracer observability.Tracer, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		llm:     invoker,
		prompts: source,
		tracer:  tracer,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
		now: time.Now,
	}
}

// Elaborate completes every candidate independently. The result has the same length and
// order as the input; a candidate whose call fails is returned unmodified. Only a missing
// template or a cancelled context fails the batch.
func (h *Handler) Elaborate(ctx context.Context, candidates []models.VehicleCandidate, intent models.SearchIntent) ([]models.VehicleCandidate, error) {
	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, "stage.elaborate", map[string]interface{}{
		"candidates": len(candidates),
	})

	template, err := h.prompts.Load(prompts.Elaborate)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("%w: %w", ErrElaborationFailed, err)
	}

	results := make([]models.VehicleCandidate, len(candidates))
	failed := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			car, err := h.elaborateOne(gctx, template, candidates[i], intent)
			if err != nil {
				stages.Fallback(StageName)
				h.logger.Warn("elaboration failed, keeping original candidate", map[string]interface{}{
					"car":   candidates[i].DisplayName(),
					"index": i,
					"error": err.Error(),
				})
				results[i] = candidates[i].Clone()
				failed[i] = true
				return nil
			}
			results[i] = car
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("%w: %w", ErrElaborationFailed, err)
	}

	fallbacks := 0
	for _, f := range failed {
		if f {
			fallbacks++
		}
	}
	span.End(map[string]interface{}{"fallbacks": fallbacks})
	h.logger.Info("elaboration completed", map[string]interface{}{
		"candidates": len(candidates),
		"fallbacks":  fallbacks,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return results, nil
}

func (h *Handler) elaborateOne(ctx context.Context, template string, car models.VehicleCandidate, intent models.SearchIntent) (models.VehicleCandidate, error) {
	messages := []llm.Message{
		llm.System(fmt.Sprintf("Today's date: %s\n\n%s\n\n%s", h.now().Format("2006-01-02"), template, stages.JSONGuard)),
		llm.User(fmt.Sprintf("Car:\n%s\n\nSearch intent:\n%s", stages.Marshal(car), stages.Marshal(intent))),
	}

	value, err := stages.InvokeJSON(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens), elaborationSchema)
	if err != nil {
		return models.VehicleCandidate{}, err
	}
	return merge(car, value.(map[string]interface{}))
}

// merge overlays the parsed fields on the candidate. Parsed values win except for the
// protected identity, pinning and image fields.
func merge(car models.VehicleCandidate, parsed map[string]interface{}) (models.VehicleCandidate, error) {
	raw, err := json.Marshal(car)
	if err != nil {
		return models.VehicleCandidate{}, err
	}
	base := map[string]interface{}{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return models.VehicleCandidate{}, err
	}

	for k, v := range parsed {
		base[k] = v
	}
	for _, k := range protectedFields {
		delete(base, k)
	}

	var merged models.VehicleCandidate
	if err := jsonrepair.Decode(base, &merged); err != nil {
		return models.VehicleCandidate{}, err
	}
	merged.Make = car.Make
	merged.Model = car.Model
	merged.Year = car.Year
	merged.Pinned = car.Pinned
	merged.Images = car.Clone().Images
	return merged, nil
}
