// internal/stages/enrich/handler.go
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/imagesearch"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages"

	"golang.org/x/sync/errgroup"
)

const StageName = "enrich"

type Handler struct {
	config      *Config
	search      imagesearch.Searcher
	fetcher     ImageFetcher
	vision      llm.Invoker
	visionModel string
	prompts     prompts.Source
	tracer      observability.Tracer
	logger      logger.Logger
}

func NewHandler(config *Config, search imagesearch.Searcher, fetcher ImageFetcher, vision llm.Invoker, visionModel string, source prompts.Source, tracer observability.Tracer, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		search:      search,
		fetcher:     fetcher,
		vision:      vision,
		visionModel: visionModel,
		prompts:     source,
		tracer:      tracer,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Enrich attaches verified images to every candidate. It never fails and every returned
// candidate has a non-nil Images slice.
func (h *Handler) Enrich(ctx context.Context, candidates []models.VehicleCandidate) []models.VehicleCandidate {
	start := time.Now()
	defer stages.Observe(StageName, start)

	ctx, span := h.tracer.Start(ctx, "stage.enrich", map[string]interface{}{
		"candidates": len(candidates),
	})

	out := models.CloneCandidates(candidates)
	groups := h.searchAll(ctx, out)

	template, templateErr := h.prompts.Load(prompts.VerifyImage)
	if templateErr != nil {
		h.logger.Warn("verify template unavailable, keeping unfiltered images", map[string]interface{}{
			"error": templateErr.Error(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)
	for _, group := range groups {
		for _, idx := range group.indexes {
			idx, raw := idx, group.images
			g.Go(func() error {
				out[idx].Images = h.filterCandidate(gctx, template, templateErr, out[idx], raw)
				return nil
			})
		}
	}
	_ = g.Wait()

	total := 0
	for _, c := range out {
		total += len(c.Images)
	}
	span.End(map[string]interface{}{"images": total})
	h.logger.Info("image enrichment completed", map[string]interface{}{
		"candidates": len(out),
		"images":     total,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out
}

// searchAll runs one image search per distinct make-model key.
func (h *Handler) searchAll(ctx context.Context, candidates []models.VehicleCandidate) []*searchGroup {
	byKey := make(map[string]*searchGroup)
	var groups []*searchGroup
	for i, c := range candidates {
		key := c.Key()
		group, ok := byKey[key]
		if !ok {
			group = &searchGroup{query: strings.TrimSpace(c.Make + " " + c.Model)}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.indexes = append(group.indexes, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			group.images = h.search.Search(gctx, group.query)
			return nil
		})
	}
	_ = g.Wait()
	return groups
}

func (h *Handler) filterCandidate(ctx context.Context, template string, templateErr error, car models.VehicleCandidate, raw []models.ImageRecord) []models.ImageRecord {
	if len(raw) == 0 {
		return []models.ImageRecord{}
	}
	if templateErr != nil {
		return h.fallback(raw)
	}

	accepted, err := h.verifyImages(ctx, template, car, raw)
	if err != nil {
		stages.Fallback(StageName)
		h.logger.Warn("image verification failed, keeping first unfiltered images", map[string]interface{}{
			"car":   car.DisplayName(),
			"error": err.Error(),
		})
		return h.fallback(raw)
	}
	return accepted
}

func (h *Handler) fallback(raw []models.ImageRecord) []models.ImageRecord {
	n := h.config.FallbackImages
	if n > len(raw) {
		n = len(raw)
	}
	out := make([]models.ImageRecord, n)
	copy(out, raw[:n])
	return out
}

// verifyImages checks images one at a time. A download failure only drops that image; a
// model or parse failure aborts the candidate.
func (h *Handler) verifyImages(ctx context.Context, template string, car models.VehicleCandidate, raw []models.ImageRecord) ([]models.ImageRecord, error) {
	accepted := make([]models.ImageRecord, 0, len(raw))
	for _, img := range raw {
		if h.config.MaxImages > 0 && len(accepted) >= h.config.MaxImages {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := h.fetcher.Fetch(ctx, img.URL)
		if err != nil {
			metrics.VisionDecisions.WithLabelValues("fetch_failed").Inc()
			h.logger.Debug("image download failed", map[string]interface{}{
				"url":   img.URL,
				"error": err.Error(),
			})
			continue
		}

		v, err := h.verify(ctx, template, car, data)
		if err != nil {
			return nil, err
		}
		if h.accepts(v) {
			metrics.VisionDecisions.WithLabelValues("accepted").Inc()
			accepted = append(accepted, img)
		} else {
			metrics.VisionDecisions.WithLabelValues("rejected").Inc()
		}
	}
	return accepted, nil
}

func (h *Handler) verify(ctx context.Context, template string, car models.VehicleCandidate, image []byte) (verdict, error) {
	messages := []llm.Message{
		llm.System(template + "\n\n" + stages.JSONGuard),
		{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Car: %s", car.DisplayName()),
			Images:  [][]byte{image},
		},
	}
	opts := llm.Options{Model: h.visionModel, Temperature: llm.Temperature(0)}

	value, err := stages.InvokeJSON(ctx, h.vision, messages, opts, verdictSchema)
	if err != nil {
		return verdict{}, err
	}
	var v verdict
	if err := jsonrepair.Decode(value, &v); err != nil {
		return verdict{}, err
	}
	return v, nil
}

func (h *Handler) accepts(v verdict) bool {
	return v.ModelConfidence >= h.config.ModelThreshold && v.TextConfidence <= h.config.TextThreshold
}
