// internal/stages/advise/handler.go
package advise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages"
)

const StageName = "advise"

var (
	ErrAdviceFailed = errors.New("ADVICE_FAILED")
	ErrEmptyAnswer  = errors.New("model returned an empty answer")
)

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

func (h *Handler) AskAboutCar(ctx context.Context, q Question) (string, error) {
	user := fmt.Sprintf("Car:\n%s\n\nQuestion: %s", stages.Marshal(stripImages(q.Car)), strings.TrimSpace(q.Question))
	return h.run(ctx, "stage.ask", prompts.AskAboutCar, q.History, q.Language, user, map[string]interface{}{
		"car": q.Car.DisplayName(),
	})
}

func (h *Handler) CompareCars(ctx context.Context, c Comparison) (string, error) {
	cars := make([]models.VehicleCandidate, len(c.Cars))
	names := make([]string, len(c.Cars))
	for i, car := range c.Cars {
		cars[i] = stripImages(car)
		names[i] = car.DisplayName()
	}
	user := fmt.Sprintf("Cars to compare:\n%s", stages.Marshal(cars))
	return h.run(ctx, "stage.compare", prompts.CompareCars, c.History, c.Language, user, map[string]interface{}{
		"cars": strings.Join(names, ", "),
	})
}

func (h *Handler) run(ctx context.Context, spanName, templateName, history, language, user string, attrs map[string]interface{}) (string, error) {
	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, spanName, attrs)

	answer, err := h.execute(ctx, templateName, history, language, user)
	if err != nil {
		span.Fail(err)
		h.logger.Error("advice failed", map[string]interface{}{
			"template": templateName,
			"error":    err.Error(),
		})
		return "", fmt.Errorf("%w: %w", ErrAdviceFailed, err)
	}

	span.End(map[string]interface{}{"answerChars": len(answer)})
	return answer, nil
}

func (h *Handler) execute(ctx context.Context, templateName, history, language, user string) (string, error) {
	template, err := h.prompts.Load(templateName)
	if err != nil {
		return "", err
	}

	var parts []string
	if language != "" {
		parts = append(parts, fmt.Sprintf("User language: %s", language))
	}
	if history != "" {
		parts = append(parts, fmt.Sprintf("Conversation History:\n%s", history))
	}
	parts = append(parts, user)

	messages := []llm.Message{
		llm.System(template),
		llm.User(strings.Join(parts, "\n\n")),
	}
	answer, err := stages.InvokeText(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens))
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

func stripImages(car models.VehicleCandidate) models.VehicleCandidate {
	car.Images = nil
	return car
}
