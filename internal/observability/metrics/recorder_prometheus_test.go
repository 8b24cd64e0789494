package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsystemMetricsRecordsUnderItsOwnNamespace(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewSubsystemMetrics(registry, "worker")
	require.NoError(t, err)

	m.RecordOperation("preset_apply", "success")
	m.RecordDuration("preset_apply", 0.05)
	m.RecordError("preset_apply", "resolver_miss")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("preset_apply", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errorsTotal.WithLabelValues("preset_apply", "resolver_miss")))
}

func TestNewSubsystemMetricsRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewSubsystemMetrics(registry, "anp")
	require.NoError(t, err)

	_, err = NewSubsystemMetrics(registry, "anp")
	assert.Error(t, err, "registering the same subsystem twice on one registry must fail")
}

func TestPipelineMetricsRecordsFormatConversionsAndBufferAllocations(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)

	m.RecordFormatConversion("pcm24", 24, "success")
	m.RecordFormatConversionError("pcm24", 24, "invalid_bit_depth")
	m.RecordBufferAllocationAttempt("jitter_ring", "anp_session", "first_allocation")

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.formatConversionsTotal.WithLabelValues("pcm24", "24", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.formatConversionErrors.WithLabelValues("pcm24", "24", "invalid_bit_depth")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.bufferAllocationAttempts.WithLabelValues("jitter_ring", "anp_session", "first_allocation")))

	var _ Recorder = m
}

func TestSinkMetricsImplementsRecorder(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewSinkMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation("write", "success")
	m.RecordError("drain", "timeout")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("write", "success")))
}
