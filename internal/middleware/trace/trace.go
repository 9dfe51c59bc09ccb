// Package trace tags every request with an id and logs its outcome.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "vaultbot/internal/log"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the id stored by the middleware, "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware reuses a valid incoming X-Request-ID or generates a new one,
// echoes it in the response and logs the request once it completes.
func Middleware(logger *applog.StructuredLogger, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(HeaderRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			r = r.WithContext(WithRequestID(r.Context(), id))

			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			ip := ""
			if clientIP != nil {
				ip = clientIP(r)
			}
			logger.LogHTTPEnd(r.Context(), applog.NewFields().
				WithRequestID(id).
				WithHTTPRequest(r.Method, r.URL.Path).
				WithHTTPResponse(rw.status, time.Since(start).Milliseconds()).
				WithClientIP(ip))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
