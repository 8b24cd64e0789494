// Package worker polls the current-media source and reconfigures the DSP
// pipeline when the playing track changes, resolving the new track's EQ
// preset directly against internal/resolver (§5.3).
package worker

import (
	"context"
	"time"

	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/resolver"
)

// MediaSource abstracts "what's playing right now" over whatever
// platform-specific mechanism is wired in (see internal/media); the
// worker only depends on this interface.
type MediaSource interface {
	CurrentTrack(ctx context.Context) (resolver.TrackMeta, error)
}

// Reconfigurer applies a resolved preset to the live DSP pipeline.
type Reconfigurer interface {
	ApplyPreset(presetName string) error
}

// Worker polls MediaSource at Interval, debounces rapid successive
// changes, and calls Reconfigurer.ApplyPreset only when the composite
// track key actually changes.
type Worker struct {
	Source   MediaSource
	Index    *resolver.RulesIndex
	Target   Reconfigurer
	Interval time.Duration
	Debounce time.Duration

	lastKey      string
	pendingKey   string
	pendingSince time.Time
}

// DefaultInterval is the spec's named polling cadence (§5.3).
const DefaultInterval = 1 * time.Second

// DefaultDebounce absorbs rapid metadata flapping around track
// boundaries (gapless transitions, streaming-API update jitter).
const DefaultDebounce = 2 * time.Second

// New creates a Worker with Interval set to DefaultInterval and Debounce
// set to DefaultDebounce.
func New(source MediaSource, idx *resolver.RulesIndex, target Reconfigurer) *Worker {
	return &Worker{
		Source:   source,
		Index:    idx,
		Target:   target,
		Interval: DefaultInterval,
		Debounce: DefaultDebounce,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	logger := logging.ForService("worker")
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.poll(now); err != nil && logger != nil {
				logger.Warn("worker poll failed", "error", err)
			}
		}
	}
}

func (w *Worker) poll(now time.Time) error {
	meta, err := w.Source.CurrentTrack(context.Background())
	if err != nil {
		return err
	}

	key := compositeKey(meta)
	if key == w.lastKey {
		w.pendingKey = ""
		return nil
	}

	if key != w.pendingKey {
		w.pendingKey = key
		w.pendingSince = now
		return nil
	}

	if now.Sub(w.pendingSince) < w.Debounce {
		return nil
	}

	result := resolver.Resolve(meta, w.Index)
	if err := w.Target.ApplyPreset(result.PresetName); err != nil {
		return err
	}

	w.lastKey = key
	w.pendingKey = ""
	return nil
}

func compositeKey(m resolver.TrackMeta) string {
	return m.Artist + "|" + m.Title + "|" + m.Album + "|" + m.Genre
}
