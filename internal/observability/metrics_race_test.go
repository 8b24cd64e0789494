package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called
// concurrently without causing a race condition or a duplicate Prometheus
// collector registration error (each call must get its own registry).
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			m, err := NewMetrics()
			assert.NoError(t, err, "NewMetrics failed")
			if m == nil {
				assert.Fail(t, "NewMetrics returned nil")
				return
			}

			assert.NotNil(t, m.registry, "metrics.registry is nil")
			assert.NotNil(t, m.Pipeline, "metrics.Pipeline is nil")
			assert.NotNil(t, m.Sink, "metrics.Sink is nil")
			assert.NotNil(t, m.ANP, "metrics.ANP is nil")
			assert.NotNil(t, m.Worker, "metrics.Worker is nil")
			assert.NotNil(t, m.Resolver, "metrics.Resolver is nil")
			assert.NotNil(t, m.Discovery, "metrics.Discovery is nil")
			assert.NotNil(t, m.HTTP, "metrics.HTTP is nil")
		}()
	}

	wg.Wait()
}

// TestNewMetricsInstancesAreIndependent verifies that each call to NewMetrics
// registers its collectors on its own registry, so running two nodes (or a
// node and its tests) in the same process never hits Prometheus's
// already-registered-collector error.
func TestNewMetricsInstancesAreIndependent(t *testing.T) {
	first, err := NewMetrics()
	require.NoError(t, err)
	second, err := NewMetrics()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotSame(t, first.registry, second.registry)

	// Recording through one instance's recorders must not touch the other's
	// registry; registering the same collector name on both would have
	// already made NewMetrics return an error if they shared a registry.
	first.Pipeline.RecordOperation("resample", "success")
	second.Pipeline.RecordOperation("resample", "success")

	firstFamilies, err := first.registry.Gather()
	require.NoError(t, err)
	secondFamilies, err := second.registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, len(firstFamilies), len(secondFamilies))
}
