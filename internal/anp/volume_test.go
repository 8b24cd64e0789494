package anp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGainDBLogarithmicCurveMatchesScenario(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, -12.041, GainDB(0.5, VolumeCurveLogarithmic), 0.001)
	assert.Equal(t, MuteGainDB, GainDB(0, VolumeCurveLogarithmic))
}

func TestGainDBLinearAndExponentialCurves(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, -6.0206, GainDB(0.5, VolumeCurveLinear), 0.001)
	assert.InDelta(t, -30, GainDB(0.5, VolumeCurveExponential), 0.001)
	assert.Equal(t, MuteGainDB, GainDB(-1, VolumeCurveLinear))
}

func TestParseRampShapeDefaultsToLinear(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RampLinear, ParseRampShape(""))
	assert.Equal(t, RampLinear, ParseRampShape("unknown"))
	assert.Equal(t, RampSCurve, ParseRampShape("s_curve"))
	assert.Equal(t, RampExponential, ParseRampShape("exponential"))
}

func TestRampProgressReachesEndpoints(t *testing.T) {
	t.Parallel()
	for _, shape := range []RampShape{RampLinear, RampSCurve, RampExponential} {
		assert.Equal(t, 0.0, RampProgress(shape, 0, 1000))
		assert.InDelta(t, 1.0, RampProgress(shape, 1000, 1000), 0.05)
	}
}

func TestRampProgressSCurveIsSymmetricAtMidpoint(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0.5, RampProgress(RampSCurve, 500, 1000), 1e-9)
}

func TestRampProgressZeroRampCompletesImmediately(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, RampProgress(RampLinear, 0, 0))
}
