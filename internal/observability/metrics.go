// Package observability aggregates AAEQ's Prometheus metrics recorders
// across subsystems into a single registry, so cmd/aaeqd can expose one
// /metrics endpoint regardless of which sinks and pipeline stages a node has
// wired in.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaeq-audio/aaeq/internal/observability/metrics"
)

// Metrics bundles every subsystem's recorder under one registry. Fields are
// exported concrete types (not metrics.Recorder) so callers that need the
// extra per-subsystem methods (e.g. Pipeline.RecordFormatConversion) don't
// have to type-assert.
type Metrics struct {
	registry *prometheus.Registry

	Pipeline  *metrics.PipelineMetrics
	Sink      *metrics.SinkMetrics
	ANP       *metrics.SubsystemMetrics
	Worker    *metrics.SubsystemMetrics
	Resolver  *metrics.SubsystemMetrics
	Discovery *metrics.SubsystemMetrics
	HTTP      *metrics.SubsystemMetrics
}

// NewMetrics creates a fresh Prometheus registry and registers every
// subsystem's metrics on it. Each call returns an independent registry;
// callers that want a process-wide singleton are responsible for holding
// onto a single *Metrics, typically constructed once in cmd/aaeqd.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	pipeline, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, err
	}
	sink, err := metrics.NewSinkMetrics(registry)
	if err != nil {
		return nil, err
	}
	anp, err := metrics.NewSubsystemMetrics(registry, "anp")
	if err != nil {
		return nil, err
	}
	worker, err := metrics.NewSubsystemMetrics(registry, "worker")
	if err != nil {
		return nil, err
	}
	resolver, err := metrics.NewSubsystemMetrics(registry, "resolver")
	if err != nil {
		return nil, err
	}
	discovery, err := metrics.NewSubsystemMetrics(registry, "discovery")
	if err != nil {
		return nil, err
	}
	httpMetrics, err := metrics.NewSubsystemMetrics(registry, "http")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registry:  registry,
		Pipeline:  pipeline,
		Sink:      sink,
		ANP:       anp,
		Worker:    worker,
		Resolver:  resolver,
		Discovery: discovery,
		HTTP:      httpMetrics,
	}, nil
}

// Registry returns the Prometheus registry backing m, for wiring into an
// HTTP handler (promhttp.HandlerFor).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
