package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Metrics middleware records HTTP metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// idPathPrefixes are the routes that carry a ULID segment right after the
// prefix.
var idPathPrefixes = []string{
	"/api/v1/accounts/",
	"/api/v1/entries/",
	"/api/v1/statements/",
	"/api/v1/transactions/",
	"/api/v1/reconciliation/runs/",
	"/api/v1/reconciliation/matches/",
	"/api/v1/consistency/checks/",
}

// normalizePath normalizes URL paths to avoid high cardinality.
// /api/v1/entries/01ABC123/post -> /api/v1/entries/:id/post
func normalizePath(path string) string {
	for _, prefix := range idPathPrefixes {
		if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
			continue
		}

		rest := path[len(prefix):]
		suffix := ""
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				suffix = rest[i:]
				rest = rest[:i]
				break
			}
		}

		// Literal sub-routes such as batch-accept are not IDs; ULIDs
		// never contain a dash.
		if strings.Contains(rest, "-") {
			return path
		}

		return prefix + ":id" + suffix
	}

	return path
}
