package sink

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name       string
	open       atomic.Bool
	opens      atomic.Int32
	drains     atomic.Int32
	closes     atomic.Int32
	writes     atomic.Int32
	failOpen   bool
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	f.opens.Add(1)
	if f.failOpen {
		return assertErr
	}
	f.open.Store(true)
	return nil
}
func (f *fakeSink) Write(ctx context.Context, block *audio.Block) error {
	f.writes.Add(1)
	return nil
}
func (f *fakeSink) Drain(ctx context.Context) error { f.drains.Add(1); return nil }
func (f *fakeSink) Close(ctx context.Context) error { f.closes.Add(1); f.open.Store(false); return nil }
func (f *fakeSink) LatencyMs() float64              { return 0 }
func (f *fakeSink) IsOpen() bool                    { return f.open.Load() }
func (f *fakeSink) Stats() Stats                    { return Stats{} }
func (f *fakeSink) Capabilities() Capabilities      { return Capabilities{} }

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "open failed" }

func cfg() audio.OutputConfig {
	return audio.OutputConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatS16LE, BufferMs: 100}
}

func TestSelectOpensSink(t *testing.T) {
	t.Parallel()

	m := NewManager()
	a := &fakeSink{name: "a"}
	m.Register(a)

	require.NoError(t, m.Select(context.Background(), "a", cfg()))
	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, "a", active.Name())
	assert.True(t, a.IsOpen())
}

func TestSelectDrainsAndClosesPreviousSink(t *testing.T) {
	t.Parallel()

	m := NewManager()
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.Select(context.Background(), "a", cfg()))
	require.NoError(t, m.Select(context.Background(), "b", cfg()))

	assert.Equal(t, int32(1), a.drains.Load())
	assert.Equal(t, int32(1), a.closes.Load())
	assert.False(t, a.IsOpen())
	assert.True(t, b.IsOpen())
}

func TestWriteWithNoActiveSinkFails(t *testing.T) {
	t.Parallel()

	m := NewManager()
	err := m.Write(context.Background(), &audio.Block{})
	assert.ErrorIs(t, err, ErrNoActiveSink)
}

func TestSelectUnknownSinkFails(t *testing.T) {
	t.Parallel()

	m := NewManager()
	err := m.Select(context.Background(), "missing", cfg())
	assert.Error(t, err)
}

func TestSelectRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Register(&fakeSink{name: "a"})
	bad := cfg()
	bad.BufferMs = 1
	err := m.Select(context.Background(), "a", bad)
	assert.Error(t, err)
}
