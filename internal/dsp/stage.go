// Package dsp implements the real-time signal chain: headroom, parametric
// EQ, resampling, dither/noise shaping, and the pipeline that composes them
// in the fixed order Headroom -> Parametric EQ -> Resample -> Dither/Shape
// -> Format convert.
package dsp

import (
	"github.com/aaeq-audio/aaeq/internal/audio"
)

// Stage is a single transformer in the pipeline. Implementations must be
// safe for Process to be called repeatedly from the audio thread while
// Status (and, where applicable, a parameter swap) is called concurrently
// from a control goroutine.
type Stage interface {
	Name() string
	Process(block *audio.Block) *audio.Block
	Status() StageStatus
}

// StageStatus is the lightweight per-stage snapshot the spec requires for
// UI/telemetry export.
type StageStatus struct {
	Name           string
	Enabled        bool
	Bypassed       bool
	LatencySamples int
	ClipCount      int64
	DriftPPM       float64
}

// Pipeline composes stages in the fixed order the spec mandates. Stages
// that are nil are skipped (Resample and Dither/Shape are optional).
type Pipeline struct {
	Headroom  *HeadroomStage
	EQ        *EQStage
	Resampler *Resampler
	Dither    *DitherStage
	Convert   *ConvertStage
}

// Process runs block through every non-nil stage in order and returns the
// final block. The input block is never mutated in place by stages that
// change frame count (Resample); stages that operate sample-wise may
// reuse the input's backing array.
func (p *Pipeline) Process(block *audio.Block) *audio.Block {
	if p.Headroom != nil {
		block = p.Headroom.Process(block)
	}
	if p.EQ != nil {
		block = p.EQ.Process(block)
	}
	if p.Resampler != nil {
		block = p.Resampler.Process(block)
	}
	if p.Dither != nil {
		block = p.Dither.Process(block)
	}
	if p.Convert != nil {
		block = p.Convert.Process(block)
	}
	return block
}

// Status returns a snapshot of every active stage, in pipeline order.
func (p *Pipeline) Status() []StageStatus {
	var out []StageStatus
	if p.Headroom != nil {
		out = append(out, p.Headroom.Status())
	}
	if p.EQ != nil {
		out = append(out, p.EQ.Status())
	}
	if p.Resampler != nil {
		out = append(out, p.Resampler.Status())
	}
	if p.Dither != nil {
		out = append(out, p.Dither.Status())
	}
	if p.Convert != nil {
		out = append(out, p.Convert.Status())
	}
	return out
}
