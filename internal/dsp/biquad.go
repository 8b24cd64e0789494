package dsp

import "math"

// BiquadType selects which RBJ cookbook formula derives a section's
// coefficients.
type BiquadType int

const (
	BiquadPeak BiquadType = iota
	BiquadLowShelf
	BiquadHighShelf
)

// BandConfig is one parametric EQ band: center/corner frequency, Q, and
// gain in dB.
type BandConfig struct {
	Type   BiquadType
	FreqHz float64
	Q      float64
	GainDB float64
}

// biquadCoeffs holds a Direct Form I biquad's normalized coefficients
// (a0 already divided out).
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// deriveCoeffs implements the Audio EQ Cookbook (Robert Bristow-Johnson)
// formulas for peaking EQ and low/high shelf filters.
func deriveCoeffs(b BandConfig, sampleRate float64) biquadCoeffs {
	A := math.Pow(10, b.GainDB/40)
	w0 := 2 * math.Pi * b.FreqHz / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)

	var b0, b1, b2, a0, a1, a2 float64

	switch b.Type {
	case BiquadPeak:
		q := b.Q
		if q <= 0 {
			q = 0.707
		}
		alpha := sinW0 / (2 * q)
		b0 = 1 + alpha*A
		b1 = -2 * cosW0
		b2 = 1 - alpha*A
		a0 = 1 + alpha/A
		a1 = -2 * cosW0
		a2 = 1 - alpha/A

	case BiquadLowShelf:
		q := b.Q
		if q <= 0 {
			q = 0.707
		}
		alpha := sinW0 / 2 * math.Sqrt((A+1/A)*(1/q-1)+2)
		sqrtA := math.Sqrt(A)
		b0 = A * ((A + 1) - (A-1)*cosW0 + 2*sqrtA*alpha)
		b1 = 2 * A * ((A - 1) - (A+1)*cosW0)
		b2 = A * ((A + 1) - (A-1)*cosW0 - 2*sqrtA*alpha)
		a0 = (A + 1) + (A-1)*cosW0 + 2*sqrtA*alpha
		a1 = -2 * ((A - 1) + (A+1)*cosW0)
		a2 = (A + 1) + (A-1)*cosW0 - 2*sqrtA*alpha

	case BiquadHighShelf:
		q := b.Q
		if q <= 0 {
			q = 0.707
		}
		alpha := sinW0 / 2 * math.Sqrt((A+1/A)*(1/q-1)+2)
		sqrtA := math.Sqrt(A)
		b0 = A * ((A + 1) + (A-1)*cosW0 + 2*sqrtA*alpha)
		b1 = -2 * A * ((A - 1) + (A+1)*cosW0)
		b2 = A * ((A + 1) + (A-1)*cosW0 - 2*sqrtA*alpha)
		a0 = (A + 1) - (A-1)*cosW0 + 2*sqrtA*alpha
		a1 = 2 * ((A - 1) - (A+1)*cosW0)
		a2 = (A + 1) - (A-1)*cosW0 - 2*sqrtA*alpha
	}

	return biquadCoeffs{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// biquadState is the Direct Form I delay line for one channel of one
// section.
type biquadState struct {
	x1, x2, y1, y2 float64
}

func (s *biquadState) process(c biquadCoeffs, x float64) float64 {
	y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}
