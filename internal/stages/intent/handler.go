// internal/stages/intent/handler.go
package intent

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

const StageName = "intent"

var ErrIntentExtractionFailed = errors.New("INTENT_EXTRACTION_FAILED")

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

// Extract turns the user's text (or a rendered conversation) into a search intent.
// Any failure is final for the pipeline.
func (h *Handler) Extract(ctx context.Context, text, language string) (models.SearchIntent, error) {
	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, "stage.intent", map[string]interface{}{
		"language": language,
		"input":    observability.Summarize(text, 200),
	})

	intent, err := h.execute(ctx, text, language)
	if err != nil {
		span.Fail(err)
		h.logger.Error("intent extraction failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.SearchIntent{}, fmt.Errorf("%w: %w", ErrIntentExtractionFailed, err)
	}

	span.End(map[string]interface{}{
		"primaryFocus": intent.PrimaryFocus,
		"country":      intent.Country,
	})
	h.logger.Info("intent extracted", map[string]interface{}{
		"primaryFocus": intent.PrimaryFocus,
		"country":      intent.Country,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return intent, nil
}

func (h *Handler) execute(ctx context.Context, text, language string) (models.SearchIntent, error) {
	template, err := h.prompts.Load(prompts.Intent)
	if err != nil {
		return models.SearchIntent{}, err
	}

	messages := []llm.Message{
		llm.System(template + "\n\n" + stages.JSONGuard),
		llm.User(h.buildPrompt(text, language)),
	}

	value, err := stages.InvokeJSON(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens), intentSchema)
	if err != nil {
		return models.SearchIntent{}, err
	}

	var intent models.SearchIntent
	if err := jsonrepair.Decode(value, &intent); err != nil {
		return models.SearchIntent{}, err
	}
	intent.PrimaryFocus = strings.TrimSpace(intent.PrimaryFocus)
	return intent, nil
}

func (h *Handler) buildPrompt(text, language string) string {
	var parts []string
	if language != "" {
		parts = append(parts, fmt.Sprintf("User language: %s", language))
	}
	parts = append(parts, fmt.Sprintf("User request:\n%s", strings.TrimSpace(text)))
	return strings.Join(parts, "\n\n")
}
