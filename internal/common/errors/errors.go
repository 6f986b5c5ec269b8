// Package errors provides the error taxonomy shared by the pipeline, the HTTP API and the job workers.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"

	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeModelHTTP        ErrorCode = "MODEL_HTTP_ERROR"
	ErrCodeResponseParse    ErrorCode = "RESPONSE_PARSE_FAILED"
	ErrCodeSchemaValidation ErrorCode = "SCHEMA_VALIDATION_FAILED"

	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodePipelineFailed   ErrorCode = "PIPELINE_FAILED"
	ErrCodeRequestTimeout   ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StatusClass groups codes by who is at fault.
type StatusClass string

const (
	ClassValidation StatusClass = "validation"
	ClassServer     StatusClass = "server"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Coded is implemented by package-level error types that know their code
// (llm.HTTPError, jsonrepair.ParseError, ...).
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationNotFoundError is returned when a follow-up arrives for a session with no prior search.
func NewConversationNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationNotFound,
		Message:   "No previous search found for this session",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewModelUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Language model backend is unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewModelHTTPError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelHTTP,
		Message:   "Language model backend returned an error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResponseParseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseParse,
		Message:   "Model response could not be parsed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSchemaValidationError reports a syntactically valid response with the wrong shape.
func NewSchemaValidationError(schema string, problems []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaValidation,
		Message:   fmt.Sprintf("Response does not match schema %q", schema),
		Details:   strings.Join(problems, "; "),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError is a configuration error: the prompt file is missing.
func NewTemplateNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Prompt template not found",
		Details:   fmt.Sprintf("template: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewPipelineFailedError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineFailed,
		Message:   "Search could not be completed",
		Details:   fmt.Sprintf("stage: %s, error: %s", stage, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewRequestTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Normalization
// ==========================

// Normalize lifts any error into a StandardError. The outermost StandardError in the
// chain wins, except PIPELINE_FAILED which defers to a more specific cause when it has one.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		if stdErr.Code != ErrCodePipelineFailed || stdErr.cause == nil {
			return stdErr
		}
		if inner := Normalize(stdErr.cause); inner.Code != ErrCodeInternal {
			return inner
		}
		return stdErr
	}

	var coded Coded
	if stderrors.As(err, &coded) {
		switch coded.ErrorCode() {
		case ErrCodeModelUnavailable:
			return NewModelUnavailableError(err)
		case ErrCodeModelHTTP:
			return NewModelHTTPError(err)
		case ErrCodeResponseParse:
			return NewResponseParseError(err)
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewRequestTimeoutError(err)
	}
	return NewInternalError(err)
}

// ClassOf reports whether the error is the caller's fault or ours.
func ClassOf(err error) StatusClass {
	switch Normalize(err).Code {
	case ErrCodeValidationFailed, ErrCodeConversationNotFound:
		return ClassValidation
	default:
		return ClassServer
	}
}

// HTTPStatus maps an error onto the status code the API responds with.
func HTTPStatus(err error) int {
	switch Normalize(err).Code {
	case ErrCodeValidationFailed, ErrCodeConversationNotFound:
		return http.StatusBadRequest
	case ErrCodeModelUnavailable, ErrCodeModelHTTP, ErrCodeResponseParse, ErrCodeSchemaValidation:
		return http.StatusBadGateway
	case ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show to an end user.
func PublicMessage(err error) string {
	stdErr := Normalize(err)
	if ClassOf(stdErr) == ClassValidation {
		return stdErr.Message
	}
	return "We could not complete your search right now. Please try again."
}

// ==========================
// 5. BPMN Conversion
// ==========================

// GetRetryCount returns how many job retries an error deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelUnavailable, ErrCodeModelHTTP, ErrCodePipelineFailed:
		return 3
	case ErrCodeResponseParse, ErrCodeSchemaValidation, ErrCodeRequestTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"errorCategory":     GetErrorCategory(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") && code != ErrCodeSchemaValidation:
		return "VALIDATION"
	case strings.Contains(codeStr, "CONVERSATION"):
		return "SESSION"
	case strings.HasPrefix(codeStr, "MODEL") || code == ErrCodeResponseParse || code == ErrCodeSchemaValidation:
		return "AI"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "CONFIGURATION"
	default:
		return "OTHER"
	}
}
