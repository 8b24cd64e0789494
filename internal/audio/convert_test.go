package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS16RoundTripWithinDitherNoiseFloor(t *testing.T) {
	t.Parallel()

	block := NewBlock(512, 1, 48000)
	for i := range block.Samples {
		block.Samples[i] = 0.5 * math.Sin(float64(i)/37.0)
	}

	wire := ToWire(block, FormatS16LE, nil)
	require.Len(t, wire, 512*2)

	back := FromWire(wire, FormatS16LE, 512, 1, 48000)

	var errAccum float64
	for i := range block.Samples {
		d := block.Samples[i] - back.Samples[i]
		errAccum += d * d
	}
	rmsErr := math.Sqrt(errAccum / float64(len(block.Samples)))

	// TPDF dither noise floor for 16-bit is on the order of the LSB; a
	// round trip should stay well under 1% full-scale RMS error.
	assert.Less(t, rmsErr, 0.01)
}

func TestS24PackUnpackRoundTrip(t *testing.T) {
	t.Parallel()

	block := &Block{Samples: []float64{0.999, -0.999, 0, 0.25, -0.5}, Frames: 5, Channels: 1, SampleRate: 44100}
	wire := ToWire(block, FormatS24LE, nil)
	require.Len(t, wire, 5*3)

	back := FromWire(wire, FormatS24LE, 5, 1, 44100)
	for i, want := range block.Samples {
		assert.InDelta(t, want, back.Samples[i], 0.01, "sample %d", i)
	}
}

func TestF32RoundTripExact(t *testing.T) {
	t.Parallel()

	block := &Block{Samples: []float64{0.1, -0.2, 0.3}, Frames: 3, Channels: 1, SampleRate: 48000}
	wire := ToWire(block, FormatF32, nil)
	back := FromWire(wire, FormatF32, 3, 1, 48000)
	for i, want := range block.Samples {
		assert.InDelta(t, want, back.Samples[i], 1e-6, "sample %d", i)
	}
}

func TestDBFSSilenceClampsToFloor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SilenceFloorDB, DBFS(0))
	assert.Equal(t, SilenceFloorDB, DBFS(-1))
}

func TestOutputConfigValidateBufferRange(t *testing.T) {
	t.Parallel()

	ok := OutputConfig{SampleRate: 48000, Channels: 2, Format: FormatS16LE, BufferMs: 200}
	assert.NoError(t, ok.Validate())

	tooSmall := ok
	tooSmall.BufferMs = 10
	assert.Error(t, tooSmall.Validate())

	tooBig := ok
	tooBig.BufferMs = 1000
	assert.Error(t, tooBig.Validate())
}
