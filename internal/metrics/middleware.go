package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests no route handled, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

var (
	triggerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idxmigrate",
			Subsystem: "trigger",
			Name:      "request_duration_seconds",
			Help:      "Trigger API request duration in seconds. POST /runs?wait=true spans a whole run.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 1800},
		},
		[]string{"method", "route", "status"},
	)

	triggerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Subsystem: "trigger",
			Name:      "requests_total",
			Help:      "Total trigger API requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpMetricsRegistered bool
)

// RegisterHTTPMetrics registers trigger API metrics with the default registry.
// Safe to call multiple times.
func RegisterHTTPMetrics() {
	if httpMetricsRegistered {
		return
	}
	httpMetricsRegistered = true
	prometheus.MustRegister(triggerRequestDuration, triggerRequestsTotal)
}

// Middleware records trigger API request duration and count, labeled by
// the chi route pattern rather than the raw path.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := []string{r.Method, routeLabel(r), strconv.Itoa(status)}

			triggerRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			triggerRequestsTotal.WithLabelValues(labels...).Inc()
		})
	}
}

func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
