package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/pkg/logger"
)

var requestIDKey = contextKey{"request-id"}

// RequestIDFrom extracts the request ID placed by RequestIDMiddleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestIDMiddleware tags every request with an ID and emits an access log
// line when the request completes. A client-supplied X-Request-ID is honored
// so IDs correlate across services.
type RequestIDMiddleware struct {
	log *logger.Logger
}

// NewRequestIDMiddleware creates the middleware.
func NewRequestIDMiddleware(log *logger.Logger) *RequestIDMiddleware {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &RequestIDMiddleware{log: log}
}

// Handler returns the request ID middleware handler.
func (m *RequestIDMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(sw, r.WithContext(ctx))

		m.log.WithFields(map[string]any{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).String(),
		}).Info("request completed")
	})
}

// statusWriter captures the response status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
