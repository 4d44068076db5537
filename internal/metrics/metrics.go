// Package metrics provides Prometheus metrics for roster reconciliation and
// commits. Collectors live on a private registry so the exposition endpoint
// carries only what this service records.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// Commit and bootstrap results.
const (
	ResultSuccess   = "success"
	ResultAborted   = "aborted"
	ResultTransient = "transient"
	ResultRejected  = "rejected"
)

// Manager owns the collectors and implements core.Recorder.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	reconcileRuns    *prometheus.CounterVec
	rowsReconciled   *prometheus.CounterVec
	reconcileLatency prometheus.Histogram

	commitRuns    *prometheus.CounterVec
	commitRows    *prometheus.CounterVec
	commitLatency prometheus.Histogram

	bootstraps        *prometheus.CounterVec
	divisionsLinked   prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpRequestLength *prometheus.HistogramVec
}

var _ core.Recorder = (*Manager)(nil)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers the collectors on registry instead of a new one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a manager with its collectors registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roster",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.reconcileRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Reconciliation requests by result",
	}, []string{"result"})

	m.rowsReconciled = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "rows_total",
		Help:      "Reconciled rows by match status",
	}, []string{"status"})

	m.reconcileLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Reconciliation latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.commitRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "commit",
		Name:      "runs_total",
		Help:      "Batch commits by result",
	}, []string{"result"})

	m.commitRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "commit",
		Name:      "rows_total",
		Help:      "Committed rows by outcome",
	}, []string{"outcome"})

	m.commitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "commit",
		Name:      "duration_seconds",
		Help:      "Batch commit latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.bootstraps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "divisions",
		Name:      "bootstraps_total",
		Help:      "Division bootstrap attempts by result",
	}, []string{"result"})

	m.divisionsLinked = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "divisions",
		Name:      "linked_total",
		Help:      "Standard divisions linked to events by bootstrap",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestLength = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry the collectors are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ObserveReconcile(report *core.ReconcileReport, elapsed time.Duration, err error) {
	m.reconcileRuns.WithLabelValues(result(err)).Inc()
	m.reconcileLatency.Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	m.rowsReconciled.WithLabelValues(string(core.StatusNew)).Add(float64(report.Summary.New))
	m.rowsReconciled.WithLabelValues(string(core.StatusMatched)).Add(float64(report.Summary.Matched))
	m.rowsReconciled.WithLabelValues(string(core.StatusConflict)).Add(float64(report.Summary.Conflict))
	m.rowsReconciled.WithLabelValues(string(core.StatusError)).Add(float64(report.Summary.Error))
}

func (m *Manager) ObserveCommit(report *core.CommitReport, elapsed time.Duration, err error) {
	m.commitRuns.WithLabelValues(result(err)).Inc()
	m.commitLatency.Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	for _, d := range report.Details {
		m.commitRows.WithLabelValues(d.Outcome).Inc()
	}
}

func (m *Manager) ObserveBootstrap(_ int64, linked int, err error) {
	m.bootstraps.WithLabelValues(result(err)).Inc()
	m.divisionsLinked.Add(float64(linked))
}

// ObserveHTTP records one served request. route is the matched route pattern.
func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestLength.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, core.ErrTransientStore):
		return ResultTransient
	case errors.Is(err, core.ErrCommitAborted), errors.Is(err, core.ErrDivisionBootstrap):
		return ResultAborted
	default:
		return ResultRejected
	}
}
