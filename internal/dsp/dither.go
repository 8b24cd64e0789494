package dsp

import (
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// DitherMode selects the noise distribution added before quantization.
type DitherMode int

const (
	DitherNone DitherMode = iota
	DitherRectangular
	DitherTriangular // TPDF
	DitherGaussian
)

// ShapeMode selects the noise-shaping filter applied to the quantization
// error before it is fed back into the next sample.
type ShapeMode int

const (
	ShapeNone ShapeMode = iota
	ShapeFirstOrder
	ShapeSecondOrder
	ShapeGesemann
)

// gesemannCoeffs are a short psychoacoustically-weighted noise-shaping
// filter (a truncated, commonly published approximation of Gesemann's
// curve), applied to the last N quantization errors.
var gesemannCoeffs = []float64{2.033, -2.165, 1.959, -1.590, 0.6149}

// DitherStage quantizes float samples to a configurable bit depth with
// dither and optional noise shaping, operating per-channel so shaping
// error history does not bleed across channels.
type DitherStage struct {
	mode       atomic.Int32
	shape      atomic.Int32
	bitDepth   atomic.Int32
	enabled    atomic.Bool
	errHistory [][]float64 // per-channel ring of recent quantization errors
}

// NewDitherStage builds a stage targeting bitDepth bits with the given
// dither and shaping modes.
func NewDitherStage(bitDepth int, mode DitherMode, shape ShapeMode, channels int) *DitherStage {
	d := &DitherStage{}
	d.enabled.Store(true)
	d.bitDepth.Store(int32(bitDepth))
	d.mode.Store(int32(mode))
	d.shape.Store(int32(shape))
	d.errHistory = make([][]float64, channels)
	for i := range d.errHistory {
		d.errHistory[i] = make([]float64, len(gesemannCoeffs))
	}
	return d
}

func (d *DitherStage) Name() string { return "dither_shape" }

func (d *DitherStage) Process(block *audio.Block) *audio.Block {
	if !d.enabled.Load() {
		return block
	}
	mode := DitherMode(d.mode.Load())
	shape := ShapeMode(d.shape.Load())
	bits := int(d.bitDepth.Load())
	if bits < 1 {
		bits = 16
	}
	full := math.Exp2(float64(bits - 1))

	for ch := 0; ch < block.Channels; ch++ {
		var history []float64
		if ch < len(d.errHistory) {
			history = d.errHistory[ch]
		}
		for frame := 0; frame < block.Frames; frame++ {
			idx := frame*block.Channels + ch
			x := block.Samples[idx]

			if shape != ShapeNone && history != nil {
				x += shapedFeedback(history, shape)
			}

			noise := ditherNoise(mode) / full
			quantized := math.Round((x+noise)*full) / full

			if shape != ShapeNone && history != nil {
				errSample := x - quantized
				copy(history[1:], history)
				history[0] = errSample
			}

			block.Samples[idx] = quantized
		}
	}
	return block
}

func ditherNoise(mode DitherMode) float64 {
	switch mode {
	case DitherRectangular:
		return rand.Float64() - 0.5
	case DitherTriangular:
		return (rand.Float64() - 0.5) + (rand.Float64() - 0.5)
	case DitherGaussian:
		return rand.NormFloat64() * 0.25
	default:
		return 0
	}
}

func shapedFeedback(history []float64, shape ShapeMode) float64 {
	switch shape {
	case ShapeFirstOrder:
		if len(history) > 0 {
			return history[0]
		}
	case ShapeSecondOrder:
		if len(history) > 1 {
			return 2*history[0] - history[1]
		}
	case ShapeGesemann:
		var fb float64
		for i, c := range gesemannCoeffs {
			if i < len(history) {
				fb += c * history[i]
			}
		}
		return fb
	}
	return 0
}

func (d *DitherStage) Status() StageStatus {
	return StageStatus{
		Name:    d.Name(),
		Enabled: d.enabled.Load(),
	}
}
