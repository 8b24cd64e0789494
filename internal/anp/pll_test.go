package anp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateClampsToPPMLimit(t *testing.T) {
	t.Parallel()

	p := NewPLL(PLLConfig{EMAWindow: 1, PPMLimit: 150, SlewRatePerIntervalPPM: 1000})
	ratio := p.Update(10000, 0.1)
	stats := p.GetStats()
	assert.LessOrEqual(t, stats.DriftPPM, 150.0+1e-9)
	assert.InDelta(t, 1.00015, ratio, 1e-6)
}

func TestUpdateSlewRateLimitsSingleStepChange(t *testing.T) {
	t.Parallel()

	p := NewPLL(PLLConfig{EMAWindow: 1, PPMLimit: 150, SlewRatePerIntervalPPM: 10})
	p.Update(0, 0.1)
	ratio := p.Update(150, 0.1)
	stats := p.GetStats()
	assert.InDelta(t, 10.0, stats.DriftPPM, 1e-6)
	assert.InDelta(t, 1.00001, ratio, 1e-6)
}

func TestStateMachineLocksAfterSustainedSmallDrift(t *testing.T) {
	t.Parallel()

	p := NewPLL(DefaultPLLConfig())
	for i := 0; i < 60; i++ {
		p.Update(1.0, 0.1)
	}
	assert.Equal(t, PLLLocked, p.State())
}

func TestStateMachineUnlocksAfterSustainedLargeDrift(t *testing.T) {
	t.Parallel()

	p := NewPLL(PLLConfig{EMAWindow: 1, PPMLimit: 150, SlewRatePerIntervalPPM: 1000})
	for i := 0; i < 60; i++ {
		p.Update(1.0, 0.1)
	}
	assert.Equal(t, PLLLocked, p.State())

	// 20 updates of 0.1s reach the 2s unlock window; a further large-drift
	// update would move Unlocked on to Seeking.
	for i := 0; i < 20; i++ {
		p.Update(100.0, 0.1)
	}
	assert.Equal(t, PLLUnlocked, p.State())
}

func TestStateReturnsToSeekingFromUnlockedOnLargeOngoingDrift(t *testing.T) {
	t.Parallel()

	p := &PLL{alpha: 1, ppmLimit: 150, slewPerStep: 1000, state: PLLUnlocked, lastRatio: 1.0}
	p.Update(100.0, 0.1)
	assert.Equal(t, PLLSeeking, p.State())
}

func TestZeroDriftConvergesRatioToOne(t *testing.T) {
	t.Parallel()

	p := NewPLL(DefaultPLLConfig())
	ratio := p.Update(0, 0.1)
	assert.Equal(t, 1.0, ratio)
}
