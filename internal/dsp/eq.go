package dsp

import (
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// eqCascade is the precomputed state for one preset: derived coefficients
// for every band, fixed once built, plus one delay-line state per channel
// per band, which Process updates in place. A cascade is built off the audio thread and swapped in atomically;
// the previous cascade is discarded once no longer referenced.
type eqCascade struct {
	bands    []BandConfig
	coeffs   []biquadCoeffs
	channels int
	state    [][]biquadState // state[channel][band]
}

func newCascade(bands []BandConfig, sampleRate float64, channels int) *eqCascade {
	c := &eqCascade{bands: bands, channels: channels}
	c.coeffs = make([]biquadCoeffs, len(bands))
	for i, b := range bands {
		c.coeffs[i] = deriveCoeffs(b, sampleRate)
	}
	c.state = make([][]biquadState, channels)
	for ch := range c.state {
		c.state[ch] = make([]biquadState, len(bands))
	}
	return c
}

// EQStage is the parametric EQ: a cascade of biquad sections rebuilt
// atomically when a new preset is selected (spec: "compute new coefficients
// off the audio thread, then swap via a single pointer/handle exchange").
type EQStage struct {
	cascade    atomic.Pointer[eqCascade]
	sampleRate float64
	channels   int
	enabled    atomic.Bool
}

// NewEQStage creates a bypassed (empty-band) EQ stage for the given format.
func NewEQStage(sampleRate float64, channels int) *EQStage {
	e := &EQStage{sampleRate: sampleRate, channels: channels}
	e.enabled.Store(true)
	e.cascade.Store(newCascade(nil, sampleRate, channels))
	return e
}

// SetPreset computes a fresh cascade for bands and swaps it in. The old
// cascade (and its delay-line state) is dropped, which means a preset
// change resets filter history — acceptable per the spec's "old state is
// discarded on next block".
func (e *EQStage) SetPreset(bands []BandConfig) {
	e.cascade.Store(newCascade(bands, e.sampleRate, e.channels))
}

func (e *EQStage) Name() string { return "parametric_eq" }

func (e *EQStage) Process(block *audio.Block) *audio.Block {
	if !e.enabled.Load() {
		return block
	}
	c := e.cascade.Load()
	if c == nil || len(c.bands) == 0 {
		return block
	}
	for ch := 0; ch < block.Channels && ch < c.channels; ch++ {
		state := c.state[ch]
		for frame := 0; frame < block.Frames; frame++ {
			idx := frame*block.Channels + ch
			x := block.Samples[idx]
			for b := range c.coeffs {
				x = state[b].process(c.coeffs[b], x)
			}
			block.Samples[idx] = x
		}
	}
	return block
}

func (e *EQStage) Status() StageStatus {
	c := e.cascade.Load()
	bypassed := c == nil || len(c.bands) == 0
	return StageStatus{
		Name:     e.Name(),
		Enabled:  e.enabled.Load(),
		Bypassed: bypassed,
	}
}
