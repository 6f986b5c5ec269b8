// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports failed jobs back to the broker.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ReplyTimeout bounds a single complete, fail or throw command.
const ReplyTimeout = 10 * time.Second

// ReplyContext derives a context for answering the broker. It keeps the parent's values
// but not its deadline, so a job that ran out of time can still be failed.
func ReplyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), ReplyTimeout)
}

// HandleJobError fails the job with retries for transient server-class errors and throws a
// BPMN error for everything else, so validation problems route to the process's error boundary.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	ctx, cancel := ReplyContext(ctx)
	defer cancel()

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		h.failJob(ctx, client, job, bpmnErr)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	retries := int32(bpmnErr.Retries)
	if job.Retries-1 < retries {
		retries = job.Retries - 1
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	var err error
	if withVars, varsErr := withErrorVariables(cmd, bpmnErr); varsErr == nil {
		_, err = withVars.Send(ctx)
	} else {
		_, err = cmd.Send(ctx)
	}
	h.reportSendError("fail job", job, err)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	var err error
	if vars, marshalErr := json.Marshal(bpmnErr.ToErrorVariables()); marshalErr != nil {
		_, err = cmd.Send(ctx)
	} else if withVars, varsErr := cmd.VariablesFromString(string(vars)); varsErr != nil {
		_, err = cmd.Send(ctx)
	} else {
		_, err = withVars.Send(ctx)
	}
	h.reportSendError("throw error", job, err)
}

func withErrorVariables(cmd commands.FailJobCommandStep3, bpmnErr *BPMNError) (commands.DispatchFailJobCommand, error) {
	vars, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return nil, err
	}
	return cmd.VariablesFromString(string(vars))
}

func (h *ErrorHandler) reportSendError(command string, job entities.Job, err error) {
	if err == nil {
		return
	}
	h.logger.Error("Failed to send "+command+" command", map[string]interface{}{
		"jobKey":  job.Key,
		"jobType": job.Type,
		"error":   err.Error(),
	})
}
