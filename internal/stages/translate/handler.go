// internal/stages/translate/handler.go
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages"

	"golang.org/x/sync/errgroup"
)

const StageName = "translate"

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

// NeedsTranslation reports whether language differs from the language results are produced in.
func (h *Handler) NeedsTranslation(language string) bool {
	language = strings.TrimSpace(language)
	return language != "" && !strings.EqualFold(language, h.config.SourceLanguage)
}

// Translate never fails: anything that goes wrong yields the original response, or the
// original value of the affected field or car.
func (h *Handler) Translate(ctx context.Context, response models.SearchResponse, language string) models.SearchResponse {
	if !h.NeedsTranslation(language) {
		return response
	}

	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, "stage.translate", map[string]interface{}{
		"language": language,
		"cars":     len(response.Cars),
	})

	out, err := h.translate(ctx, response, language)
	if err != nil {
		span.Fail(err)
		stages.Fallback(StageName)
		h.logger.Warn("translation failed, returning original response", map[string]interface{}{
			"language": language,
			"error":    err.Error(),
		})
		return response
	}

	span.End(nil)
	h.logger.Info("translation completed", map[string]interface{}{
		"language":   language,
		"cars":       len(out.Cars),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out
}

func (h *Handler) translate(ctx context.Context, response models.SearchResponse, language string) (models.SearchResponse, error) {
	analysisTemplate, err := h.prompts.Load(prompts.TranslateAnalysis)
	if err != nil {
		return models.SearchResponse{}, err
	}
	carTemplate, err := h.prompts.Load(prompts.TranslateCar)
	if err != nil {
		return models.SearchResponse{}, err
	}

	out := response.Clone()
	out.Analysis = h.translateAnalysis(ctx, analysisTemplate, response.Analysis, language)

	if h.config.Sequential {
		for i, car := range response.Cars {
			out.Cars[i] = h.translateSingleCar(ctx, carTemplate, car, language, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(h.config.Concurrency)
		for i, car := range response.Cars {
			i, car := i, car
			g.Go(func() error {
				out.Cars[i] = h.translateSingleCar(gctx, carTemplate, car, language, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return models.SearchResponse{}, err
	}
	return out, nil
}

func (h *Handler) translateAnalysis(ctx context.Context, template, text, language string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	messages := []llm.Message{
		llm.System(template),
		llm.User(fmt.Sprintf("Target language: %s\n\nText:\n%s", language, text)),
	}
	translated, err := stages.InvokeText(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens))
	if err != nil {
		stages.Fallback(StageName)
		h.logger.Warn("analysis translation failed, keeping original", map[string]interface{}{
			"error": err.Error(),
		})
		return text
	}
	if utf8.RuneCountInString(translated) < h.config.MinAnalysisLength {
		stages.Fallback(StageName)
		h.logger.Warn("analysis translation too short, keeping original", map[string]interface{}{
			"length": utf8.RuneCountInString(translated),
		})
		return text
	}
	return translated
}

func (h *Handler) translateSingleCar(ctx context.Context, template string, car models.VehicleCandidate, language string, index int) models.VehicleCandidate {
	translated, err := h.requestCar(ctx, template, car, language)
	if err != nil {
		h.rejectCar(car, index, err.Error())
		return car.Clone()
	}
	if !car.SameIdentity(translated) {
		h.rejectCar(car, index, fmt.Sprintf("identity changed to %s", translated.DisplayName()))
		return car.Clone()
	}
	return restoreFixedFields(car, translated)
}

func (h *Handler) requestCar(ctx context.Context, template string, car models.VehicleCandidate, language string) (models.VehicleCandidate, error) {
	payload := car.Clone()
	payload.Images = nil

	messages := []llm.Message{
		llm.System(template + "\n\n" + stages.JSONGuard),
		llm.User(fmt.Sprintf("Target language: %s\n\nCar:\n%s", language, stages.Marshal(payload))),
	}
	value, err := stages.InvokeJSON(ctx, h.llm, messages, stages.Options(h.config.Temperature, h.config.MaxTokens), translatedCarSchema)
	if err != nil {
		return models.VehicleCandidate{}, err
	}

	var translated models.VehicleCandidate
	if err := jsonrepair.Decode(value, &translated); err != nil {
		return models.VehicleCandidate{}, err
	}
	return translated, nil
}

func (h *Handler) rejectCar(car models.VehicleCandidate, index int, reason string) {
	stages.Fallback(StageName)
	h.logger.Warn("car translation rejected, keeping original", map[string]interface{}{
		"car":    car.DisplayName(),
		"index":  index,
		"reason": reason,
	})
}

// restoreFixedFields copies back everything translation must not touch: identity spelling,
// the non-linguistic fields, pinning, images and the set of property ids.
func restoreFixedFields(original, translated models.VehicleCandidate) models.VehicleCandidate {
	out := translated
	out.Make = original.Make
	out.Model = original.Model
	out.Year = original.Year
	out.Percentage = original.Percentage
	out.PreciseModel = original.PreciseModel
	out.Configuration = original.Configuration
	out.Pinned = original.Pinned
	out.Images = original.Clone().Images

	if original.VehicleProperties != nil {
		props := make(map[string]models.VehicleProperty, len(original.VehicleProperties))
		for id, prop := range original.VehicleProperties {
			if tp, ok := translated.VehicleProperties[id]; ok {
				props[id] = tp
			} else {
				props[id] = prop
			}
		}
		out.VehicleProperties = props
	} else {
		out.VehicleProperties = nil
	}

	// A field the model dropped or nulled keeps its untranslated value.
	for _, f := range []struct{ dst, src *models.Text }{
		{&out.Price, &original.Price},
		{&out.MarketAvailability, &original.MarketAvailability},
		{&out.Type, &original.Type},
		{&out.Reason, &original.Reason},
	} {
		if strings.TrimSpace(string(*f.dst)) == "" {
			*f.dst = *f.src
		}
	}

	if len(out.Strengths) == 0 && len(original.Strengths) > 0 {
		out.Strengths = append([]string(nil), original.Strengths...)
	}
	if len(out.Weaknesses) == 0 && len(original.Weaknesses) > 0 {
		out.Weaknesses = append([]string(nil), original.Weaknesses...)
	}
	return out
}
