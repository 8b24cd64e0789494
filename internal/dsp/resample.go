package dsp

import (
	"math"
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/klauspost/cpuid/v2"
)

// ResampleQuality selects the sinc filter's tap count. Higher quality
// tiers use more taps per output sample. Independently of the tier, a
// block width based on the host CPU's widest available SIMD feature set
// (klauspost/cpuid/v2) is recorded at construction time; the convolution
// itself is plain Go and computes one output sample at a time (see
// DESIGN.md for why the teacher's in-house kernel library isn't wired).
type ResampleQuality int

const (
	QualityDraft ResampleQuality = iota // 8 taps/side
	QualityGood                        // 16 taps/side
	QualityBest                        // 32 taps/side
	QualityUltra                       // 64 taps/side
)

func tapsForQuality(q ResampleQuality) int {
	switch q {
	case QualityDraft:
		return 8
	case QualityGood:
		return 16
	case QualityBest:
		return 32
	case QualityUltra:
		return 64
	default:
		return 16
	}
}

// innerLoopBlockWidth returns a batch width in output samples sized to the
// widest SIMD register the host CPU reports. NewResampler stores it in
// blockWidth; Process does not batch and does not read it.
func innerLoopBlockWidth() int {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return 16
	case cpuid.CPU.Supports(cpuid.AVX2):
		return 8
	case cpuid.CPU.Supports(cpuid.SSE2):
		return 4
	default:
		return 1
	}
}

// Resampler converts between sample rates (and, for Micro-PLL clock
// correction, applies a small continuously-adjustable ratio around 1.0)
// using a Hann-windowed sinc kernel evaluated directly at each fractional
// source position.
type Resampler struct {
	taps        int
	blockWidth  int
	inRate      float64
	outRate     float64
	ratio      atomic.Uint64 // math.Float64bits of the current resample ratio
	enabled    atomic.Bool
	framesOut  int64
}

// NewResampler builds a resampler from inRate to outRate at the given
// quality tier for the given channel count.
func NewResampler(inRate, outRate float64, quality ResampleQuality, channels int) *Resampler {
	r := &Resampler{
		taps:       tapsForQuality(quality),
		blockWidth: innerLoopBlockWidth(),
		inRate:     inRate,
		outRate:    outRate,
	}
	r.enabled.Store(true)
	r.ratio.Store(math.Float64bits(1.0))
	return r
}

// SetRatio applies a Micro-PLL clock-drift correction ratio, expected to be
// close to 1.0 (1 + adjustment_ppm/1e6).
func (r *Resampler) SetRatio(ratio float64) {
	r.ratio.Store(math.Float64bits(ratio))
}

func (r *Resampler) Name() string { return "resample" }

// Process resamples block from inRate to outRate*ratio. The returned
// block's Frames generally differs from the input's.
func (r *Resampler) Process(block *audio.Block) *audio.Block {
	ratio := math.Float64frombits(r.ratio.Load())
	if !r.enabled.Load() || (r.inRate == r.outRate && ratio == 1.0) {
		return block
	}
	step := (r.inRate / r.outRate) / ratio

	outFrames := int(float64(block.Frames) / step)
	out := audio.NewBlock(outFrames, block.Channels, int(r.outRate))

	for ch := 0; ch < block.Channels; ch++ {
		pos := 0.0
		for of := 0; of < outFrames; of++ {
			srcPos := pos
			out.Samples[of*block.Channels+ch] = sincSample(block, ch, srcPos, r.taps)
			pos += step
		}
	}
	r.framesOut += int64(outFrames)
	return out
}

// sincSample evaluates a windowed-sinc interpolated sample at fractional
// source position pos for the given channel, using a Hann-windowed sinc
// kernel over +/-taps neighboring frames.
func sincSample(block *audio.Block, channel int, pos float64, taps int) float64 {
	center := int(math.Floor(pos))
	frac := pos - float64(center)

	var acc, norm float64
	for k := -taps; k <= taps; k++ {
		idx := center + k
		if idx < 0 || idx >= block.Frames {
			continue
		}
		x := float64(k) - frac
		w := sincWindowed(x, taps)
		acc += w * block.Samples[idx*block.Channels+channel]
		norm += w
	}
	if norm == 0 {
		return 0
	}
	return acc / norm
}

func sincWindowed(x float64, taps int) float64 {
	var sinc float64
	if math.Abs(x) < 1e-9 {
		sinc = 1.0
	} else {
		px := math.Pi * x
		sinc = math.Sin(px) / px
	}
	// Hann window over the +/-taps support.
	window := 0.5 * (1 + math.Cos(math.Pi*x/float64(taps)))
	return sinc * window
}

func (r *Resampler) Status() StageStatus {
	return StageStatus{Name: r.Name(), Enabled: r.enabled.Load()}
}
