// internal/workers/car-search/find-cars/handler.go
package findcars

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/common/validation"
	"car-advisor/internal/models"
	"car-advisor/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskTypeFindCars     = "car-search.find-cars"
	TaskTypeRefineSearch = "car-search.refine-search"
)

// Searcher is the slice of the pipeline this worker drives.
type Searcher interface {
	FindCars(ctx context.Context, req pipeline.FindCarsRequest) (models.SearchResult, error)
	RefineSearch(ctx context.Context, req pipeline.RefineSearchRequest) (models.SearchResult, error)
}

type Handler struct {
	config       *Config
	searcher     Searcher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, searcher Searcher, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"worker": "find-cars"})
	return &Handler{
		config:       config,
		searcher:     searcher,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

// Handle serves both task types; the job type picks the pipeline operation.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(job.Type).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(job.Type).Dec()
		metrics.WorkerJobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"jobType":     job.Type,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError(fmt.Sprintf("invalid job variables: %v", err)))
		return
	}

	output, err := h.Execute(ctx, job.Type, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(job.Type, "COMPLETE_FAILED").Inc()
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(job.Type, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// Execute validates the variables and runs the pipeline operation for jobType.
func (h *Handler) Execute(ctx context.Context, jobType string, input *Input) (*Output, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}

	var (
		result models.SearchResult
		err    error
	)
	switch jobType {
	case TaskTypeFindCars:
		if input.Requirements == "" {
			return nil, errors.NewValidationError("requirements is required")
		}
		result, err = h.searcher.FindCars(ctx, pipeline.FindCarsRequest{
			SessionID:    input.SessionID,
			Requirements: input.Requirements,
			Language:     input.Language,
		})
	case TaskTypeRefineSearch:
		if input.Feedback == "" {
			return nil, errors.NewValidationError("feedback is required")
		}
		result, err = h.searcher.RefineSearch(ctx, pipeline.RefineSearchRequest{
			SessionID:  input.SessionID,
			Feedback:   input.Feedback,
			Language:   input.Language,
			PinnedCars: input.PinnedCars,
		})
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported job type %q", jobType))
	}
	if err != nil {
		return nil, err
	}

	cars := result.Cars
	if cars == nil {
		cars = []models.VehicleCandidate{}
	}
	h.logger.Info("search completed", map[string]interface{}{
		"sessionId": input.SessionID,
		"jobType":   jobType,
		"cars":      len(cars),
	})
	return &Output{
		Success:    true,
		Analysis:   result.Analysis,
		Cars:       cars,
		UserMarket: result.UserMarket,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}

	replyCtx, cancel := errors.ReplyContext(ctx)
	defer cancel()
	if _, err := cmd.Send(replyCtx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}
