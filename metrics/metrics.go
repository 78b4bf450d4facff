// Package metrics exposes Prometheus metrics of the registry on a dedicated HTTP server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// MetricsServer serves /metrics from its own registry.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	ledgerCalls    *prometheus.CounterVec
	ledgerDuration *prometheus.HistogramVec
	registrations  *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
}

// New creates a metrics server listening on addr. Metric names are prefixed with namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	m := &MetricsServer{
		registry: registry,
		ledgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Registry contract calls by network, method and outcome.",
		}, []string{"network", "method", "kind", "outcome"}),
		ledgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Time spent in registry contract calls, including confirmation for writes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"network", "method", "kind"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Artifact registrations by artifact and final state.",
		}, []string{"artifact", "state"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "resolutions_total",
			Help:      "Artifact resolutions by artifact and resolution error.",
		}, []string{"artifact", "error"}),
	}

	for _, c := range []prometheus.Collector{
		m.ledgerCalls,
		m.ledgerDuration,
		m.registrations,
		m.resolutions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Registry returns the registry backing /metrics.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// ObserveLedgerCall records one registry contract call.
func (m *MetricsServer) ObserveLedgerCall(network, method string, write bool, err error, duration time.Duration) {
	kind := "read"
	if write {
		kind = "write"
	}
	m.ledgerCalls.WithLabelValues(network, method, kind, callOutcome(err)).Inc()
	m.ledgerDuration.WithLabelValues(network, method, kind).Observe(duration.Seconds())
}

// ObserveRegistration records the final state of an artifact registration.
func (m *MetricsServer) ObserveRegistration(artifact string, state interfaces.RegistrationState) {
	m.registrations.WithLabelValues(artifact, string(state)).Inc()
}

// ObserveResolution records an artifact resolution. An empty code is a successful resolution.
func (m *MetricsServer) ObserveResolution(artifact, code string) {
	if code == "" {
		code = "none"
	}
	m.resolutions.WithLabelValues(artifact, code).Inc()
}

func callOutcome(err error) string {
	var ledgerErr *interfaces.LedgerError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &ledgerErr) && ledgerErr.Submitted():
		return "reverted"
	default:
		return "error"
	}
}
