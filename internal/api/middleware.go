// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"time"

	"car-advisor/internal/common/logger"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// SessionHeader carries the conversation key in both directions.
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

// Session reads the session id or mints one, and echoes it on the response.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// RequestLogger logs one line per request with the chi request id.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  chimiddleware.GetReqID(r.Context()),
			}
			if ww.Status() >= 500 {
				log.Error("request failed", fields)
				return
			}
			log.Info("request handled", fields)
		})
	}
}
