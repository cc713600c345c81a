// Package metrics holds the Prometheus collectors for the archive client and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes recorded by ObserveFetch.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics groups all collectors registered by stargaze.
type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	imagesKept    prometheus.Counter
	entriesDrop   prometheus.Counter
	requestCount  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargaze_archive_fetch_total",
				Help: "Archive fetches by outcome.",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stargaze_archive_fetch_duration_seconds",
			Help:    "Latency of archive fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		imagesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stargaze_archive_images_total",
			Help: "Image entries returned to the gallery.",
		}),
		entriesDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stargaze_archive_entries_dropped_total",
			Help: "Non-image archive entries filtered out.",
		}),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
	}
	for _, c := range []prometheus.Collector{m.fetchTotal, m.fetchDuration, m.imagesKept, m.entriesDrop, m.requestCount} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFetch records one archive fetch. kept and dropped count image and non-image entries.
func (m *Metrics) ObserveFetch(outcome string, elapsed time.Duration, kept, dropped int) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
	m.imagesKept.Add(float64(kept))
	m.entriesDrop.Add(float64(dropped))
}

// Middleware counts requests by method, route pattern, and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Route pattern (e.g. /api/v1/gallery) instead of the raw path.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestCount.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}
