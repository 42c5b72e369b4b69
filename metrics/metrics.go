// Package metrics exposes Prometheus metrics for the adapter service:
// a scrape endpoint plus per-adapter operation counters and latency
// histograms.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	opsTotal    *prometheus.CounterVec
	opsDuration *prometheus.HistogramVec
}

// New creates a metrics server listening on addr. The namespace
// prefixes every metric name.
func New(namespace, addr string) (*MetricsServer, error) {
	namespace = strings.ReplaceAll(namespace, "-", "_")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_operations_total",
		Help:      "Adapter operations by backend, operation and outcome.",
	}, []string{"backend", "operation", "outcome"})
	registry.MustRegister(opsTotal)

	opsDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "adapter_operation_duration_seconds",
		Help:      "Adapter operation latency by backend and operation.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"backend", "operation"})
	registry.MustRegister(opsDuration)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		registry:    registry,
		opsTotal:    opsTotal,
		opsDuration: opsDuration,
	}, nil
}

// ObserveOperation records one adapter operation. The outcome is
// "success" or the error kind string.
func (m *MetricsServer) ObserveOperation(backend, operation, outcome string, duration time.Duration) {
	m.opsTotal.WithLabelValues(backend, operation, outcome).Inc()
	m.opsDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// ListenAndServe starts the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the scrape endpoint.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
