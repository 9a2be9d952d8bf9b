package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskforge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskforge",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total number of token validations and logins by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	tasksOverdue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "taskforge",
			Subsystem: "tasks",
			Name:      "overdue",
			Help:      "Open tasks past their due date, per project.",
		},
		[]string{"project_id"},
	)

	auditAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskforge",
			Subsystem: "audit",
			Name:      "appends_total",
			Help:      "Total history and activity records written.",
		},
		[]string{"trail"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		authAttempts,
		tasksOverdue,
		auditAppends,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordAuthAttempt counts an auth operation outcome.
func RecordAuthAttempt(operation string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	authAttempts.WithLabelValues(operation, outcome).Inc()
}

// SetOverdueTasks publishes the overdue task count for a project.
func SetOverdueTasks(projectID string, count int) {
	if projectID == "" {
		return
	}
	tasksOverdue.WithLabelValues(projectID).Set(float64(count))
}

// RecordAuditAppend counts an audit trail write. trail is "history" or
// "activity".
func RecordAuditAppend(trail string) {
	auditAppends.WithLabelValues(trail).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses entity ids so the path label stays low-cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "projects", "tasks":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		if len(parts) == 2 {
			return "/" + parts[0] + "/:id"
		}
		return "/" + parts[0] + "/:id/" + parts[2]
	default:
		return "/" + parts[0]
	}
}
