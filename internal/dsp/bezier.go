package dsp

import "math"

// bezierAnchorsHz are the strategic anchor frequencies the editor fits a
// 4-control-point cubic Bezier curve to, per the spec.
var bezierAnchorsHz = [4]float64{62, 250, 2000, 8000}

// BezierCurve is a 4-control-point cubic Bezier over log frequency,
// expressing a custom EQ curve as gains (dB) at t=0,1/3,2/3,1 mapped onto
// the anchor frequencies.
type BezierCurve struct {
	GainsDB [4]float64
}

// FitBezier fits a BezierCurve to band gains by sampling the nearest band
// to each anchor frequency and reports the residual error (max absolute
// difference in dB between the requested bands and the curve's value at
// that band's frequency).
func FitBezier(bands []BandConfig) (BezierCurve, float64) {
	var curve BezierCurve
	for i, anchor := range bezierAnchorsHz {
		curve.GainsDB[i] = nearestGainDB(bands, anchor)
	}

	var residual float64
	for _, b := range bands {
		t := logFreqToT(b.FreqHz)
		got := curve.EvalDB(t)
		if d := math.Abs(got - b.GainDB); d > residual {
			residual = d
		}
	}
	return curve, residual
}

// EvalDB evaluates the cubic Bezier at parameter t in [0,1].
func (c BezierCurve) EvalDB(t float64) float64 {
	mt := 1 - t
	return mt*mt*mt*c.GainsDB[0] +
		3*mt*mt*t*c.GainsDB[1] +
		3*mt*t*t*c.GainsDB[2] +
		t*t*t*c.GainsDB[3]
}

// Bands materializes the curve back into a band cascade: one band per
// anchor frequency, each with the curve's gain at that anchor and a
// moderate Q suitable for a broad tonal adjustment.
func (c BezierCurve) Bands() []BandConfig {
	bands := make([]BandConfig, len(bezierAnchorsHz))
	for i, f := range bezierAnchorsHz {
		typ := BiquadPeak
		if i == 0 {
			typ = BiquadLowShelf
		} else if i == len(bezierAnchorsHz)-1 {
			typ = BiquadHighShelf
		}
		bands[i] = BandConfig{Type: typ, FreqHz: f, Q: 0.9, GainDB: c.GainsDB[i]}
	}
	return bands
}

// logFreqToT maps a frequency onto [0,1] over the anchors' log-frequency
// span, clamped to the span's endpoints.
func logFreqToT(freqHz float64) float64 {
	lo := math.Log2(bezierAnchorsHz[0])
	hi := math.Log2(bezierAnchorsHz[len(bezierAnchorsHz)-1])
	t := (math.Log2(freqHz) - lo) / (hi - lo)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func nearestGainDB(bands []BandConfig, targetHz float64) float64 {
	if len(bands) == 0 {
		return 0
	}
	best := bands[0]
	bestDist := math.Abs(math.Log2(best.FreqHz) - math.Log2(targetHz))
	for _, b := range bands[1:] {
		d := math.Abs(math.Log2(b.FreqHz) - math.Log2(targetHz))
		if d < bestDist {
			best, bestDist = b, d
		}
	}
	return best.GainDB
}
