// internal/stages/suggest/handler.go
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages"
)

const StageName = "suggest"

var ErrSuggestionFailed = errors.New("SUGGESTION_FAILED")

type Handler struct {
	config  *Config
	llm     llm.Invoker
	prompts prompts.Source
	tracer  observability.Tracer
	logger  logger.Logger
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
	}
}

// Suggest asks for ranked candidates. pinnedHint is empty outside refinement turns.
// Merging pinned cars into the result is left to the caller.
func (h *Handler) Suggest(ctx context.Context, intent models.SearchIntent, contextText, pinnedHint string) (models.Suggestions, error) {
	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, "stage.suggest", map[string]interface{}{
		"primaryFocus": intent.PrimaryFocus,
		"refinement":   pinnedHint != "",
	})

	out, err := h.execute(ctx, intent, contextText, pinnedHint)
	if err != nil {
		span.Fail(err)
		h.logger.Error("suggestion failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.Suggestions{}, fmt.Errorf("%w: %w", ErrSuggestionFailed, err)
	}

	span.End(map[string]interface{}{
		"choices":    len(out.Choices),
		"pinnedCars": len(out.PinnedCars),
	})
	h.logger.Info("suggestions generated", map[string]interface{}{
		"choices":    len(out.Choices),
		"pinnedCars": len(out.PinnedCars),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (h *Handler) execute(ctx context.Context, intent models.SearchIntent, contextText, pinnedHint string) (models.Suggestions, error) {
	template, err := h.prompts.Load(prompts.Suggest)
	if err != nil {
		return models.Suggestions{}, err
	}

	messages := []llm.Message{
		llm.System(template + "\n\n" + stages.JSONGuard),
		llm.User(h.buildPrompt(intent, contextText, pinnedHint)),
	}

	value, err := stages.InvokeJSON(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens), suggestionsSchema)
	if err != nil {
		return models.Suggestions{}, err
	}

	var out models.Suggestions
	if err := jsonrepair.Decode(value, &out); err != nil {
		return models.Suggestions{}, err
	}

	out.Analysis = strings.TrimSpace(out.Analysis)
	out.Choices = normalize(out.Choices)
	out.PinnedCars = normalize(out.PinnedCars)
	if h.config.MaxChoices > 0 && len(out.Choices) > h.config.MaxChoices {
		out.Choices = out.Choices[:h.config.MaxChoices]
	}
	return out, nil
}

func (h *Handler) buildPrompt(intent models.SearchIntent, contextText, pinnedHint string) string {
	parts := []string{
		fmt.Sprintf("Search intent:\n%s", stages.Marshal(intent)),
	}
	if s := strings.TrimSpace(contextText); s != "" {
		parts = append(parts, fmt.Sprintf("Context:\n%s", s))
	}
	if pinnedHint != "" {
		parts = append(parts, pinnedHint)
	}
	return strings.Join(parts, "\n\n")
}

// normalize trims identity fields and drops the model's opinion on pinning.
func normalize(cars []models.VehicleCandidate) []models.VehicleCandidate {
	out := make([]models.VehicleCandidate, 0, len(cars))
	for _, c := range cars {
		c.Make = strings.TrimSpace(c.Make)
		c.Model = strings.TrimSpace(c.Model)
		c.Year = models.Text(strings.TrimSpace(string(c.Year)))
		c.Pinned = false
		c.Images = nil
		out = append(out, c)
	}
	return out
}

// PinnedHint renders the block that asks the model to re-evaluate previously pinned cars.
func PinnedHint(pinned []models.VehicleCandidate) string {
	if len(pinned) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The user pinned these cars. Re-evaluate each one against the latest feedback and return it in \"pinnedCars\" with exactly the same make, model and year:\n")
	for _, c := range pinned {
		fmt.Fprintf(&b, "- %s\n", c.DisplayName())
	}
	return strings.TrimRight(b.String(), "\n")
}
