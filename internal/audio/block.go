// Package audio defines the primitive types the DSP pipeline and output
// sinks exchange: sample formats, fixed-size PCM blocks, and output
// configuration. It is intentionally free of any pipeline/stage logic.
package audio

import (
	"fmt"

	"github.com/aaeq-audio/aaeq/internal/errors"
)

// SampleFormat enumerates the PCM sample encodings the pipeline and sinks
// understand. The pipeline itself works on float64 samples (see Block); all
// of these are wire/device formats produced by ToWire.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32          // 32-bit float, [-1, 1]
	FormatS16LE        // 16-bit signed little-endian
	FormatS24LE        // 24-bit signed little-endian, packed 3 bytes/sample
	FormatS32LE        // 32-bit signed little-endian
)

// BytesPerSample returns the on-wire/in-memory size of one sample in this
// format, or 0 for FormatUnknown.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatF32, FormatS32LE:
		return 4
	case FormatS24LE:
		return 3
	case FormatS16LE:
		return 2
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS16LE:
		return "s16le"
	case FormatS24LE:
		return "s24le"
	case FormatS32LE:
		return "s32le"
	default:
		return "unknown"
	}
}

// Block is a fixed-size chunk of interleaved multi-channel PCM flowing
// through the pipeline. Samples are always float64 in [-1, 1] internally;
// sinks and the Format convert stage translate to/from wire formats at the
// edges.
type Block struct {
	Samples    []float64 // interleaved, len == Frames*Channels
	Frames     int
	Channels   int
	SampleRate int
}

// NewBlock allocates a zeroed block sized for frames*channels samples.
func NewBlock(frames, channels, sampleRate int) *Block {
	return &Block{
		Samples:    make([]float64, frames*channels),
		Frames:     frames,
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// Validate checks the block's internal consistency invariants.
func (b *Block) Validate() error {
	if b.Channels < 1 || b.Channels > 8 {
		return errors.New(nil).
			Component("audio").
			Category(errors.CategoryValidation).
			Context("channels", b.Channels).
			Build()
	}
	if len(b.Samples) != b.Frames*b.Channels {
		return errors.Newf("block: len(Samples)=%d does not match Frames*Channels=%d",
			len(b.Samples), b.Frames*b.Channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// OutputConfig describes the negotiated format a sink was opened with.
// Immutable for the lifetime of the open sink (spec: "Created on sink
// open, immutable until close").
type OutputConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
	BufferMs   int // in [50, 500]
	Exclusive  bool
}

// Validate enforces the invariants named in the data model: buffer_ms in
// [50, 500] and channels in {1..8}.
func (c OutputConfig) Validate() error {
	if c.BufferMs < 50 || c.BufferMs > 500 {
		return errors.Newf("output config: buffer_ms %d outside [50, 500]", c.BufferMs).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	if c.Channels < 1 || c.Channels > 8 {
		return errors.Newf("output config: channels %d outside [1, 8]", c.Channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	if c.SampleRate <= 0 {
		return errors.Newf("output config: sample_rate must be positive, got %d", c.SampleRate).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// BufferFrames returns the number of frames BufferMs represents at this
// config's sample rate, rounding to the nearest frame.
func (c OutputConfig) BufferFrames() int {
	return (c.BufferMs*c.SampleRate + 500) / 1000
}

func (c OutputConfig) String() string {
	return fmt.Sprintf("%dHz/%dch/%s/%dms", c.SampleRate, c.Channels, c.Format, c.BufferMs)
}
