// Package metrics exposes Prometheus instruments for dataset loading and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platflood",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "platflood",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})

	// Dataset loading metrics
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "platflood",
		Subsystem: "layers",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of dataset fetches",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"layer"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platflood",
		Subsystem: "layers",
		Name:      "fetch_failures_total",
		Help:      "Total dataset load failures by kind (network, parse, rendering)",
	}, []string{"layer", "kind"})

	LoadCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platflood",
		Subsystem: "layers",
		Name:      "load_cycles_total",
		Help:      "Completed load cycles by outcome (complete, partial, empty)",
	}, []string{"outcome"})

	RegisteredLayers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "platflood",
		Subsystem: "layers",
		Name:      "registered",
		Help:      "Datasets registered on the map after the last load cycle",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
