package dsp

import (
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// ConvertStage is the pipeline's final stage: it clamps the working float
// signal to [-1, 1] immediately before a sink encodes it to its wire
// format via audio.ToWire. The actual bit-depth/byte-layout conversion
// lives in the audio package so sinks can call it directly on demand
// (e.g. the DLNA pull sink re-encoding for a newly connected client).
type ConvertStage struct {
	format  atomic.Int32
	enabled atomic.Bool
}

// NewConvertStage targets the given wire format.
func NewConvertStage(format audio.SampleFormat) *ConvertStage {
	c := &ConvertStage{}
	c.enabled.Store(true)
	c.format.Store(int32(format))
	return c
}

// Format returns the stage's configured target wire format.
func (c *ConvertStage) Format() audio.SampleFormat {
	return audio.SampleFormat(c.format.Load())
}

// SetFormat changes the target format, e.g. after a sink falls back from
// F32 to S16LE.
func (c *ConvertStage) SetFormat(format audio.SampleFormat) {
	c.format.Store(int32(format))
}

func (c *ConvertStage) Name() string { return "format_convert" }

func (c *ConvertStage) Process(block *audio.Block) *audio.Block {
	if !c.enabled.Load() {
		return block
	}
	for i, s := range block.Samples {
		if s > 1.0 {
			block.Samples[i] = 1.0
		} else if s < -1.0 {
			block.Samples[i] = -1.0
		}
	}
	return block
}

func (c *ConvertStage) Status() StageStatus {
	return StageStatus{Name: c.Name(), Enabled: c.enabled.Load()}
}
