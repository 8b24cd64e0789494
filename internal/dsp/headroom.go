package dsp

import (
	"math"
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// HeadroomStage multiplies samples by 10^(headroom_db/20) and, when clip
// detection is enabled, hard-limits any sample whose magnitude reaches or
// exceeds full scale while counting the clip.
type HeadroomStage struct {
	gain          atomic.Uint64 // math.Float64bits of the linear gain
	clipDetection atomic.Bool
	clipCount     atomic.Int64
	enabled       atomic.Bool
}

// NewHeadroomStage builds a stage from a headroom in dB (typically -3).
func NewHeadroomStage(headroomDB float64, clipDetection bool) *HeadroomStage {
	h := &HeadroomStage{}
	h.enabled.Store(true)
	h.clipDetection.Store(clipDetection)
	h.SetHeadroomDB(headroomDB)
	return h
}

// SetHeadroomDB updates the gain atomically; safe to call from a control
// goroutine while Process runs concurrently on the audio thread.
func (h *HeadroomStage) SetHeadroomDB(db float64) {
	gain := math.Pow(10, db/20)
	h.gain.Store(math.Float64bits(gain))
}

func (h *HeadroomStage) Name() string { return "headroom" }

func (h *HeadroomStage) Process(block *audio.Block) *audio.Block {
	if !h.enabled.Load() {
		return block
	}
	gain := math.Float64frombits(h.gain.Load())
	detect := h.clipDetection.Load()
	var clips int64

	for i, s := range block.Samples {
		v := s * gain
		if detect && math.Abs(v) >= 1.0 {
			clips++
			if v > 1.0 {
				v = 1.0
			} else if v < -1.0 {
				v = -1.0
			}
		}
		block.Samples[i] = v
	}
	if clips > 0 {
		h.clipCount.Add(clips)
	}
	return block
}

// ClipCount returns the lifetime count of clipped samples.
func (h *HeadroomStage) ClipCount() int64 { return h.clipCount.Load() }

func (h *HeadroomStage) Status() StageStatus {
	return StageStatus{
		Name:      h.Name(),
		Enabled:   h.enabled.Load(),
		ClipCount: h.clipCount.Load(),
	}
}
