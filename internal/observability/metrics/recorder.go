// Package metrics provides AAEQ's Prometheus-backed metrics recorders, plus
// a Recorder interface so components can depend on the recording contract
// instead of a concrete metrics type.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the minimal contract a component needs to instrument an
// operation: a counter keyed by outcome, a duration histogram, and an error
// counter keyed by error class. Components should depend on this interface
// rather than a concrete metrics type, so tests can substitute TestRecorder
// or NoOpRecorder.
type Recorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordError(operation, errorType string)
}

// SubsystemMetrics is the shared Prometheus-backed Recorder implementation,
// embedded by every subsystem's metrics type under its own namespace. It
// exists so ANP, the worker, the resolver, and discovery don't each need a
// bespoke metrics struct for the common operation/duration/error triple.
type SubsystemMetrics struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

// NewSubsystemMetrics registers a generic operation/duration/error metric
// triple under namespace "aaeq", subsystem name subsystem, on registry.
func NewSubsystemMetrics(registry prometheus.Registerer, subsystem string) (*SubsystemMetrics, error) {
	m := &SubsystemMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaeq",
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Total operations processed, labeled by operation and outcome status.",
		}, []string{"operation", "status"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aaeq",
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Operation duration in seconds, labeled by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaeq",
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total errors encountered, labeled by operation and error type.",
		}, []string{"operation", "error_type"}),
	}
	for _, c := range []prometheus.Collector{m.operationsTotal, m.durationSeconds, m.errorsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SubsystemMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *SubsystemMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

func (m *SubsystemMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

var _ Recorder = (*SubsystemMetrics)(nil)

// PipelineMetrics instruments the real-time DSP streaming pipeline: stage
// operation/duration/error via the embedded SubsystemMetrics, plus
// sample-format conversions and ring-buffer allocation attempts, which are
// frequent enough and structured enough (bit depth, source) to warrant their
// own label sets rather than being squeezed into the generic operation name.
type PipelineMetrics struct {
	*SubsystemMetrics
	formatConversionsTotal   *prometheus.CounterVec
	formatConversionErrors   *prometheus.CounterVec
	bufferAllocationAttempts *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metric set on registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	sub, err := NewSubsystemMetrics(registry, "pipeline")
	if err != nil {
		return nil, err
	}
	m := &PipelineMetrics{
		SubsystemMetrics: sub,
		formatConversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaeq",
			Subsystem: "pipeline",
			Name:      "format_conversions_total",
			Help:      "Sample format conversions performed, labeled by format, bit depth, and outcome.",
		}, []string{"format", "bit_depth", "status"}),
		formatConversionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaeq",
			Subsystem: "pipeline",
			Name:      "format_conversion_errors_total",
			Help:      "Sample format conversion errors, labeled by format, bit depth, and error type.",
		}, []string{"format", "bit_depth", "error_type"}),
		bufferAllocationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaeq",
			Subsystem: "pipeline",
			Name:      "buffer_allocation_attempts_total",
			Help:      "Ring/frame buffer allocation attempts, labeled by buffer type, source, and result.",
		}, []string{"buffer_type", "source", "result"}),
	}
	for _, c := range []prometheus.Collector{m.formatConversionsTotal, m.formatConversionErrors, m.bufferAllocationAttempts} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PipelineMetrics) RecordFormatConversion(format string, bitDepth int, status string) {
	m.formatConversionsTotal.WithLabelValues(format, strconv.Itoa(bitDepth), status).Inc()
}

func (m *PipelineMetrics) RecordFormatConversionError(format string, bitDepth int, errorType string) {
	m.formatConversionErrors.WithLabelValues(format, strconv.Itoa(bitDepth), errorType).Inc()
}

func (m *PipelineMetrics) RecordBufferAllocationAttempt(bufferType, source, result string) {
	m.bufferAllocationAttempts.WithLabelValues(bufferType, source, result).Inc()
}

// SinkMetrics instruments an output sink's write/drain/underrun behavior via
// the generic operation/duration/error triple; "write", "drain", and "open"
// are the expected operation labels, with "underrun" and "overrun" recorded
// as errors.
type SinkMetrics struct {
	*SubsystemMetrics
}

// NewSinkMetrics registers the sink metric set on registry.
func NewSinkMetrics(registry prometheus.Registerer) (*SinkMetrics, error) {
	sub, err := NewSubsystemMetrics(registry, "sink")
	if err != nil {
		return nil, err
	}
	return &SinkMetrics{SubsystemMetrics: sub}, nil
}
