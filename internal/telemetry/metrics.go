// Package telemetry registers the Prometheus metrics exposed on /metrics.
//
// All collectors live on the default registry. HTTP metrics are labelled by
// chi route pattern, never by raw URL, so ids in paths do not blow up label
// cardinality.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route pattern and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tally_http_request_duration_seconds",
			Help:    "HTTP request latencies, by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// AuditTransitionsTotal counts lifecycle transitions by target status
	// (PENDING on create, then ACTIVE, COMPLETED or CANCELLED).
	AuditTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_audit_transitions_total",
			Help: "Audit session lifecycle transitions, by audit type and resulting status.",
		},
		[]string{"type", "status"},
	)

	AuditScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_audit_scans_total",
			Help: "Asset scans recorded against audit sessions, by outcome.",
		},
		[]string{"outcome"},
	)

	AuditGetOrCreateConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_audit_get_or_create_conflicts_total",
			Help: "Get-or-create calls that lost the insert race and re-read the winning session.",
		},
	)

	AuditRemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_audit_reminders_total",
			Help: "Due-date reminder deliveries, by stage and result (sent, unlinked, failed).",
		},
		[]string{"stage", "result"},
	)
)

// Middleware records request count and latency for every routed request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
