// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline invocations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)

	StageFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_item_fallbacks_total",
			Help: "Items that fell back to their original value inside a best-effort step",
		},
		[]string{"stage"},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Requests sent to the model backend",
		},
		[]string{"model", "status"},
	)

	ImageSearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_requests_total",
			Help: "Image search lookups by outcome (hit, miss, error, open)",
		},
		[]string{"outcome"},
	)

	VisionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_image_decisions_total",
			Help: "Images accepted or rejected by the vision check",
		},
		[]string{"decision"},
	)

	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Conversations currently held in memory",
		},
	)

	ConversationsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_swept_total",
			Help: "Conversations removed by the expiry sweep",
		},
	)
)
