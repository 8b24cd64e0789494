package anp

import (
	"sync"
)

// PLLState is the Micro-PLL's lock status (§4.6.6), reported in every
// health message.
type PLLState int

const (
	PLLSeeking PLLState = iota
	PLLLocked
	PLLUnlocked
)

func (s PLLState) String() string {
	switch s {
	case PLLSeeking:
		return "seeking"
	case PLLLocked:
		return "locked"
	case PLLUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// pllLockThresholdPPM / pllUnlockThresholdPPM are the drift magnitudes
// that trigger a state transition once sustained for the matching
// duration below.
const (
	pllLockThresholdPPM   = 5.0
	pllUnlockThresholdPPM = 20.0
)

// PLL tracks clock drift between the sender's RTP timestamp clock and the
// local playback clock, producing a smoothed, clamped, slew-limited
// correction ratio that internal/dsp.Resampler.SetRatio consumes.
//
// Measurement happens externally (the caller computes actual vs expected
// samples over an adjustment interval and calls Update with the raw
// instantaneous ppm); PLL owns only the smoothing/clamping/state-machine
// logic, keeping it independent of how samples are counted.
type PLL struct {
	mu sync.Mutex

	emaWindow   int
	alpha       float64
	ppmLimit    float64
	slewPerStep float64

	ema          float64
	initialized  bool
	lockedFor    float64 // accumulated seconds under lock threshold
	unlockedFor  float64 // accumulated seconds over unlock threshold
	state        PLLState
	lastRatio    float64
}

// PLLConfig carries the negotiated Micro-PLL parameters (§4.6.6).
type PLLConfig struct {
	EMAWindow           int     // default 8
	PPMLimit            float64 // default 150
	SlewRatePerIntervalPPM float64 // max ppm change allowed per adjustment interval
}

// DefaultPLLConfig returns the spec's named defaults.
func DefaultPLLConfig() PLLConfig {
	return PLLConfig{
		EMAWindow:              8,
		PPMLimit:               150,
		SlewRatePerIntervalPPM: 50,
	}
}

// NewPLL creates a Micro-PLL with the given configuration.
func NewPLL(cfg PLLConfig) *PLL {
	if cfg.EMAWindow <= 0 {
		cfg.EMAWindow = 8
	}
	return &PLL{
		emaWindow:   cfg.EMAWindow,
		alpha:       2.0 / (float64(cfg.EMAWindow) + 1.0),
		ppmLimit:    cfg.PPMLimit,
		slewPerStep: cfg.SlewRatePerIntervalPPM,
		state:       PLLSeeking,
		lastRatio:   1.0,
	}
}

// Update feeds one instantaneous drift measurement (ppm, positive meaning
// the sender clock runs fast relative to local playback) measured over an
// interval of intervalSeconds, and returns the resample ratio to apply.
func (p *PLL) Update(instantaneousPPM float64, intervalSeconds float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		p.ema = instantaneousPPM
		p.initialized = true
	} else {
		p.ema = p.alpha*instantaneousPPM + (1-p.alpha)*p.ema
	}

	target := clamp(p.ema, -p.ppmLimit, p.ppmLimit)

	// Slew-rate limit: the adjustment applied this interval may move at
	// most slewPerStep ppm from the previous applied value.
	prevPPM := (p.lastRatio - 1.0) * 1e6
	delta := target - prevPPM
	if delta > p.slewPerStep {
		target = prevPPM + p.slewPerStep
	} else if delta < -p.slewPerStep {
		target = prevPPM - p.slewPerStep
	}

	p.advanceState(target, intervalSeconds)

	ratio := 1.0 + target/1e6
	p.lastRatio = ratio
	return ratio
}

func (p *PLL) advanceState(driftPPM, intervalSeconds float64) {
	abs := driftPPM
	if abs < 0 {
		abs = -abs
	}

	switch p.state {
	case PLLSeeking:
		if abs < pllLockThresholdPPM {
			p.lockedFor += intervalSeconds
			if p.lockedFor >= 5.0 {
				p.state = PLLLocked
				p.unlockedFor = 0
			}
		} else {
			p.lockedFor = 0
		}
	case PLLLocked:
		if abs > pllUnlockThresholdPPM {
			p.unlockedFor += intervalSeconds
			if p.unlockedFor >= 2.0 {
				p.state = PLLUnlocked
				p.lockedFor = 0
			}
		} else {
			p.unlockedFor = 0
		}
	case PLLUnlocked:
		if abs < pllLockThresholdPPM {
			p.lockedFor += intervalSeconds
			if p.lockedFor >= 5.0 {
				p.state = PLLLocked
				p.unlockedFor = 0
			}
		} else {
			p.lockedFor = 0
			p.state = PLLSeeking
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// State returns the current lock state.
func (p *PLL) State() PLLState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PLLStats is the Micro-PLL portion of the ANP health message (§4.6.7).
type PLLStats struct {
	State    string  `json:"state"`
	DriftPPM float64 `json:"drift_ppm"`
	Ratio    float64 `json:"resample_ratio"`
}

func (p *PLL) GetStats() PLLStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PLLStats{
		State:    p.state.String(),
		DriftPPM: (p.lastRatio - 1.0) * 1e6,
		Ratio:    p.lastRatio,
	}
}
