// internal/monitoring/metrics.go
package monitoring

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace string            `json:"namespace"`
	Subsystem string            `json:"subsystem"`
	Labels    map[string]string `json:"labels"`
	// EnableGoMetrics adds the Go runtime and process collectors
	EnableGoMetrics bool `json:"enable_go_metrics"`
}

// Metrics records run and API metrics in its own registry, so several
// instances never collide and tests start from zero.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	catalogMovies    prometheus.Gauge
	catalogTheaters  prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	// Source metrics
	sourceScrapes   *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	sourceMovies    *prometheus.GaugeVec
	diagnosticTotal *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "showtimes"
	}

	registry := prometheus.NewRegistry()
	factory := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)
	if config.EnableGoMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{registry: registry}
	ns, sub := config.Namespace, config.Subsystem

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub,
		Name: "runs_total",
		Help: "Total number of aggregation runs by result",
	}, []string{"status"})

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub,
		Name:    "run_duration_seconds",
		Help:    "Aggregation run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	m.catalogMovies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub,
		Name: "catalog_movies",
		Help: "Movies in the most recent catalog",
	})

	m.catalogTheaters = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub,
		Name: "catalog_theaters",
		Help: "Theaters with at least one movie in the most recent catalog",
	})

	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub,
		Name: "last_run_timestamp_seconds",
		Help: "Unix time the most recent run finished",
	})

	m.sourceScrapes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub,
		Name: "source_scrapes_total",
		Help: "Source scrapes by theater, strategy and status",
	}, []string{"theater", "strategy", "status"})

	m.sourceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub,
		Name:    "source_duration_seconds",
		Help:    "Time spent scraping one source",
		Buckets: prometheus.DefBuckets,
	}, []string{"theater"})

	m.sourceMovies = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub,
		Name: "source_movies",
		Help: "Movies extracted from a source in the most recent run",
	}, []string{"theater"})

	m.diagnosticTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub,
		Name: "diagnostics_total",
		Help: "Recorded failures by stage and kind",
	}, []string{"stage", "kind"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub,
		Name: "http_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "status_code"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub,
		Name:    "http_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	factory.MustRegister(
		m.runsTotal, m.runDuration, m.catalogMovies, m.catalogTheaters, m.lastRunTimestamp,
		m.sourceScrapes, m.sourceDuration, m.sourceMovies, m.diagnosticTotal,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// ObserveSource records one source's outcome
func (m *Metrics) ObserveSource(theater, strategy string, movies int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sourceScrapes.WithLabelValues(theater, strategy, status).Inc()
	m.sourceDuration.WithLabelValues(theater).Observe(duration.Seconds())
	m.sourceMovies.WithLabelValues(theater).Set(float64(movies))
}

// ObserveDiagnostic counts one recorded failure
func (m *Metrics) ObserveDiagnostic(stage, kind string) {
	m.diagnosticTotal.WithLabelValues(stage, kind).Inc()
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(movies, theaters int, duration time.Duration, finished time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	if err == nil {
		m.catalogMovies.Set(float64(movies))
		m.catalogTheaters.Set(float64(theaters))
	}
	m.lastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveHTTPRequest records one API request
func (m *Metrics) ObserveHTTPRequest(route string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteToTextfile writes the registry for the node exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
