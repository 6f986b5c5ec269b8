// internal/llm/errors.go
package llm

import (
	"fmt"

	"car-advisor/internal/common/errors"
)

// UnavailableError means the backend could not be reached at all.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("model backend unavailable at %s: %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) ErrorCode() errors.ErrorCode { return errors.ErrCodeModelUnavailable }

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("model backend %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("model backend %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) ErrorCode() errors.ErrorCode { return errors.ErrCodeModelHTTP }
