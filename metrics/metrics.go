// Package metrics exposes service and reaper activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ephemera"

// Metrics holds all Prometheus metrics for the service. It implements
// ephemera.Observer.
type Metrics struct {
	// Object lifecycle
	UploadsTotal    prometheus.Counter     // ephemera_uploads_total
	UploadsRejected *prometheus.CounterVec // ephemera_uploads_rejected_total{reason}
	BytesUploaded   prometheus.Counter     // ephemera_bytes_uploaded_total
	DownloadsTotal  prometheus.Counter     // ephemera_downloads_total
	BytesDownloaded prometheus.Counter     // ephemera_bytes_downloaded_total
	DeletesTotal    prometheus.Counter     // ephemera_deletes_total

	// Reaper
	ReapRunsTotal     *prometheus.CounterVec // ephemera_reaper_runs_total{status}
	ReapPurgedTotal   prometheus.Counter     // ephemera_reaper_purged_total
	ReapFailedObjects prometheus.Counter     // ephemera_reaper_failed_objects_total
	ReapDuration      prometheus.Histogram   // ephemera_reaper_duration_seconds
	ReapLastSuccess   prometheus.Gauge       // ephemera_reaper_last_success_timestamp_seconds

	// HTTP
	RequestsTotal   *prometheus.CounterVec   // ephemera_http_requests_total{route,method,status}
	RequestDuration *prometheus.HistogramVec // ephemera_http_request_duration_seconds{route,method}

	gatherer prometheus.Gatherer
}

// New registers all metrics with registry. A nil registry uses a fresh one,
// so repeated calls in tests never collide.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	f := promauto.With(registry)

	return &Metrics{
		UploadsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total objects stored",
		}),
		UploadsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected by validation or policy, by reason",
		}, []string{"reason"}),
		BytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes of stored objects",
		}),
		DownloadsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total authorized downloads",
		}),
		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Total size of downloaded objects",
		}),
		DeletesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Total objects deleted by their owners",
		}),
		ReapRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_runs_total",
			Help:      "Reaper passes by outcome",
		}, []string{"status"}),
		ReapPurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_purged_total",
			Help:      "Expired objects purged",
		}),
		ReapFailedObjects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_failed_objects_total",
			Help:      "Expired objects whose registry entry could not be removed",
		}),
		ReapDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaper_duration_seconds",
			Help:      "Duration of reaper passes",
			Buckets:   prometheus.DefBuckets,
		}),
		ReapLastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reaper_last_success_timestamp_seconds",
			Help:      "Unix time of the last completed reaper pass",
		}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		gatherer: registry,
	}
}

func (m *Metrics) ObjectIngested(sizeBytes int64) {
	m.UploadsTotal.Inc()
	m.BytesUploaded.Add(float64(sizeBytes))
}

func (m *Metrics) IngestRejected(reason string) {
	m.UploadsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObjectDownloaded(sizeBytes int64) {
	m.DownloadsTotal.Inc()
	m.BytesDownloaded.Add(float64(sizeBytes))
}

func (m *Metrics) ObjectDeleted() {
	m.DeletesTotal.Inc()
}

func (m *Metrics) ReapCompleted(purged, failed int, elapsed time.Duration) {
	m.ReapRunsTotal.WithLabelValues("success").Inc()
	m.ReapPurgedTotal.Add(float64(purged))
	m.ReapFailedObjects.Add(float64(failed))
	m.ReapDuration.Observe(elapsed.Seconds())
	m.ReapLastSuccess.SetToCurrentTime()
}

func (m *Metrics) ReapFailed() {
	m.ReapRunsTotal.WithLabelValues("error").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per chi route pattern.
// Unmatched requests are grouped under "unmatched" to bound cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
