package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordOperation verifies RecordOperation functionality of TestRecorder.
func TestRecordOperation(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordOperation("resample", "success")
	recorder.RecordOperation("resample", "success")
	recorder.RecordOperation("resample", "error")
	recorder.RecordOperation("preset_apply", "success")

	assert.Equal(t, 2, recorder.GetOperationCount("resample", "success"), "should have 2 successful resamples")
	assert.Equal(t, 1, recorder.GetOperationCount("resample", "error"), "should have 1 resample error")
	assert.Equal(t, 1, recorder.GetOperationCount("preset_apply", "success"), "should have 1 successful preset apply")
	assert.Equal(t, 0, recorder.GetOperationCount("preset_apply", "error"), "should have 0 preset apply errors")
}

// TestRecordDuration verifies RecordDuration functionality of TestRecorder.
func TestRecordDuration(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordDuration("resample", 0.123)
	recorder.RecordDuration("resample", 0.456)
	recorder.RecordDuration("frame_encode", 0.789)

	predDurations := recorder.GetDurations("resample")
	require.Len(t, predDurations, 2, "should have 2 resample durations")
	assert.InDelta(t, 0.123, predDurations[0], 0.01, "first resample duration should be 0.123")
	assert.InDelta(t, 0.456, predDurations[1], 0.01, "second resample duration should be 0.456")

	chunkDurations := recorder.GetDurations("frame_encode")
	require.Len(t, chunkDurations, 1, "should have 1 frame encode duration")
	assert.InDelta(t, 0.789, chunkDurations[0], 0.01, "frame encode duration should be 0.789")

	// Test non-existent operation
	durations := recorder.GetDurations("non_existent")
	assert.Nil(t, durations, "should return nil for non-existent operation")
}

// TestRecordError verifies RecordError functionality of TestRecorder.
func TestRecordError(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordError("resample", "validation")
	recorder.RecordError("resample", "validation")
	recorder.RecordError("resample", "model_error")
	recorder.RecordError("sink_write", "connection")

	assert.Equal(t, 2, recorder.GetErrorCount("resample", "validation"), "should have 2 validation errors")
	assert.Equal(t, 1, recorder.GetErrorCount("resample", "model_error"), "should have 1 model error")
	assert.Equal(t, 1, recorder.GetErrorCount("sink_write", "connection"), "should have 1 connection error")
	assert.Equal(t, 0, recorder.GetErrorCount("sink_write", "timeout"), "should have 0 timeout errors")
}

// TestRecorderThreadSafety verifies thread safety of TestRecorder.
func TestRecorderThreadSafety(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	done := make(chan bool)
	numGoroutines := 10
	opsPerGoroutine := 100

	for range numGoroutines {
		go func() {
			for range opsPerGoroutine {
				recorder.RecordOperation("concurrent", "success")
				recorder.RecordDuration("concurrent", 0.001)
				recorder.RecordError("concurrent", "test")
			}
			done <- true
		}()
	}

	for range numGoroutines {
		<-done
	}

	expectedCount := numGoroutines * opsPerGoroutine
	assert.Equal(t, expectedCount, recorder.GetOperationCount("concurrent", "success"),
		"should have correct operation count after concurrent access")

	durations := recorder.GetDurations("concurrent")
	assert.Len(t, durations, expectedCount, "should have correct duration count after concurrent access")

	assert.Equal(t, expectedCount, recorder.GetErrorCount("concurrent", "test"),
		"should have correct error count after concurrent access")
}

// TestGetAllOperations verifies GetAllOperations functionality of TestRecorder.
func TestGetAllOperations(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordOperation("op1", "success")
	recorder.RecordOperation("op1", "error")
	recorder.RecordOperation("op2", "success")

	all := recorder.GetAllOperations()
	assert.Len(t, all, 2, "should have 2 different operations")

	assert.Equal(t, 1, all["op1"]["success"], "op1 should have 1 success")
	assert.Equal(t, 1, all["op1"]["error"], "op1 should have 1 error")
	assert.Equal(t, 1, all["op2"]["success"], "op2 should have 1 success")
}

// TestGetAllErrors verifies GetAllErrors functionality of TestRecorder.
func TestGetAllErrors(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordError("op1", "type1")
	recorder.RecordError("op1", "type2")
	recorder.RecordError("op2", "type1")

	all := recorder.GetAllErrors()
	assert.Len(t, all, 2, "should have 2 operations with errors")

	assert.Equal(t, 1, all["op1"]["type1"], "op1 should have 1 type1 error")
	assert.Equal(t, 1, all["op1"]["type2"], "op1 should have 1 type2 error")
	assert.Equal(t, 1, all["op2"]["type1"], "op2 should have 1 type1 error")
}

// TestHasRecordedMetrics verifies HasRecordedMetrics functionality of TestRecorder.
func TestHasRecordedMetrics(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()

	// Initially should have no metrics
	assert.False(t, recorder.HasRecordedMetrics(), "should have no metrics initially")

	// Record an operation
	recorder.RecordOperation("test", "success")
	assert.True(t, recorder.HasRecordedMetrics(), "should have metrics after recording operation")

	// Reset and check again
	recorder.Reset()
	assert.False(t, recorder.HasRecordedMetrics(), "should have no metrics after reset")

	// Record a duration
	recorder.RecordDuration("test", 0.1)
	assert.True(t, recorder.HasRecordedMetrics(), "should have metrics after recording duration")

	// Reset and record an error
	recorder.Reset()
	recorder.RecordError("test", "error")
	assert.True(t, recorder.HasRecordedMetrics(), "should have metrics after recording error")
}

// TestNoOpRecorder verifies that the NoOpRecorder correctly implements the Recorder interface.
func TestNoOpRecorder(t *testing.T) {
	t.Parallel()

	recorder := NewNoOpRecorder()

	// These operations should not panic and should do nothing
	recorder.RecordOperation("test", "success")
	recorder.RecordDuration("test", 0.123)
	recorder.RecordError("test", "error")

	// No assertions needed - just verify no panics occur
}

// TestRecorderWithRealMetrics verifies that real metrics types implement the Recorder interface.
func TestRecorderWithRealMetrics(t *testing.T) {
	t.Parallel()

	t.Run("PipelineMetrics", func(t *testing.T) {
		// This test verifies that PipelineMetrics implements Recorder
		var _ Recorder = (*PipelineMetrics)(nil)
	})

	t.Run("SinkMetrics", func(t *testing.T) {
		// This test verifies that SinkMetrics implements Recorder
		var _ Recorder = (*SinkMetrics)(nil)
	})
}

// BenchmarkTestRecorder benchmarks the TestRecorder implementation.
func BenchmarkTestRecorder(b *testing.B) {
	b.Run("RecordOperation", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Setup: create a fresh recorder for each run
		recorder := NewTestRecorder()

		b.StartTimer() // Start timer after setup is complete

		// Run the benchmark
		for b.Loop() {
			recorder.RecordOperation("bench", "success")
		}

		b.StopTimer() // Stop timer before any cleanup
	})

	b.Run("RecordDuration", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Setup: create a fresh recorder
		recorder := NewTestRecorder()

		b.StartTimer() // Start timer after setup

		// Run the benchmark
		for b.Loop() {
			recorder.RecordDuration("bench", 0.123)
		}

		b.StopTimer() // Stop timer after benchmark
	})

	b.Run("RecordError", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Setup: create a fresh recorder
		recorder := NewTestRecorder()

		b.StartTimer() // Start timer after setup

		// Run the benchmark
		for b.Loop() {
			recorder.RecordError("bench", "error")
		}

		b.StopTimer() // Stop timer after benchmark
	})

	b.Run("GetOperationCount", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Setup: create and populate recorder
		recorder := NewTestRecorder()
		recorder.RecordOperation("bench", "success")

		b.StartTimer() // Start timer after all setup is complete

		// Run the benchmark
		for b.Loop() {
			_ = recorder.GetOperationCount("bench", "success")
		}

		b.StopTimer() // Stop timer after benchmark
	})

	b.Run("ConcurrentOperations", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Setup: create a fresh recorder
		recorder := NewTestRecorder()

		b.StartTimer() // Start timer after setup

		// Run concurrent operations
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				recorder.RecordOperation("bench", "success")
			}
		})

		b.StopTimer() // Stop timer after benchmark
	})

	// Benchmark with recorder reset between iterations
	b.Run("RecordOperationWithReset", func(b *testing.B) {
		b.StopTimer() // Stop timer before setup

		// Create recorder once
		recorder := NewTestRecorder()

		// Run the benchmark with reset
		for b.Loop() {
			b.StopTimer()    // Stop timer before reset
			recorder.Reset() // Reset state between iterations
			b.StartTimer()   // Restart timer after reset

			recorder.RecordOperation("bench", "success")
		}

		b.StopTimer() // Final stop
	})
}

// ExampleTestRecorder demonstrates how to use the TestRecorder in tests.
func ExampleTestRecorder() {
	recorder := NewTestRecorder()

	// Record some operations
	recorder.RecordOperation("resample", "success")
	recorder.RecordDuration("resample", 0.123)

	// Later in the test, verify the operations
	successCount := recorder.GetOperationCount("resample", "success")
	durations := recorder.GetDurations("resample")

	_ = successCount // Use in assertions
	_ = durations    // Use in assertions
}

// TestRecorderUsageExample shows how components can use the Recorder interface.
func TestRecorderUsageExample(t *testing.T) {
	// This example shows how a component would use the Recorder interface
	type Component struct {
		metrics Recorder
	}

	doWork := func(c *Component, simulatedDuration time.Duration) error {
		// Record the simulated duration instead of actual elapsed time
		defer func() {
			c.metrics.RecordDuration("work", simulatedDuration.Seconds())
		}()

		// In real code, work would happen here
		// For testing, we just use the simulated duration

		// Record success
		c.metrics.RecordOperation("work", "success")
		return nil
	}

	// Test with TestRecorder
	testRecorder := NewTestRecorder()
	component := &Component{metrics: testRecorder}

	// Use a fixed duration for deterministic testing
	simulatedDuration := 15 * time.Millisecond

	err := doWork(component, simulatedDuration)
	require.NoError(t, err, "doWork should not return an error")

	// Verify metrics were recorded
	assert.Equal(t, 1, testRecorder.GetOperationCount("work", "success"),
		"should have 1 successful operation")

	durations := testRecorder.GetDurations("work")
	require.Len(t, durations, 1, "should have 1 duration recorded")
	assert.InDelta(t, simulatedDuration.Seconds(), durations[0], 0.01,
		"recorded duration should match simulated duration")
}
