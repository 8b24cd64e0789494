package ring

import (
	"testing"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() audio.OutputConfig {
	return audio.OutputConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatS16LE, BufferMs: 100}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	b := New(testConfig())
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n := b.Write(payload)
	require.Equal(t, len(payload), n)

	out := make([]byte, len(payload))
	got := b.Read(out)
	assert.Equal(t, len(payload), got)
	assert.Equal(t, payload, out)
	assert.Equal(t, int64(0), b.Underruns())
}

func TestReadPastAvailableCountsUnderrunAndZeroFills(t *testing.T) {
	t.Parallel()

	b := New(testConfig())
	b.Write([]byte{9, 9})

	out := make([]byte, 10)
	got := b.Read(out)
	assert.Equal(t, 2, got)
	assert.Equal(t, int64(1), b.Underruns())
	for i := 2; i < len(out); i++ {
		assert.Equal(t, byte(0), out[i])
	}
}

func TestOverflowDropsOldestAndCountsOverrun(t *testing.T) {
	t.Parallel()

	cfg := audio.OutputConfig{SampleRate: 1000, Channels: 1, Format: audio.FormatS16LE, BufferMs: 50}
	b := New(cfg)

	big := make([]byte, 1000)
	for i := range big {
		big[i] = byte(i % 256)
	}
	b.Write(big)
	b.Write(big)

	assert.Greater(t, b.Overruns(), int64(0))
}

func TestFillMsReflectsWrittenBytes(t *testing.T) {
	t.Parallel()

	b := New(testConfig())
	assert.Equal(t, 0.0, b.FillMs())

	frameBytes := 2 * 2 // 2 channels * 2 bytes/sample (S16LE)
	framesFor10ms := 480 // 48000Hz * 10ms
	b.Write(make([]byte, framesFor10ms*frameBytes))
	assert.InDelta(t, 10.0, b.FillMs(), 1.0)
}
