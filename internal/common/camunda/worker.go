// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"car-advisor/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes, fails or throws on the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerConfig struct {
	TaskType      string
	MaxJobsActive int
	Concurrency   int
	// Timeout is how long the broker keeps the job locked to this worker.
	Timeout time.Duration
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker on the shared client. Closing the client is the caller's job.
func NewWorker(client zbc.Client, cfg WorkerConfig, handler JobHandler, log logger.Logger) *CamundaWorker {
	log = log.With(map[string]interface{}{"taskType": cfg.TaskType})

	step := client.NewJobWorker().
		JobType(cfg.TaskType).
		Handler(handler.Handle).
		MaxJobsActive(cfg.MaxJobsActive)
	if cfg.Concurrency > 0 {
		step = step.Concurrency(cfg.Concurrency)
	}
	if cfg.Timeout > 0 {
		step = step.Timeout(cfg.Timeout)
	}

	w := &CamundaWorker{
		worker:   step.Open(),
		logger:   log,
		taskType: cfg.TaskType,
	}
	log.Info("worker started", map[string]interface{}{"maxJobsActive": cfg.MaxJobsActive})
	return w
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
