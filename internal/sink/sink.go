// Package sink defines the Output Sink abstraction (§4.3): a uniform
// trait every output backend (local DAC, DLNA, ANP) implements, and the
// manager that owns the registered sinks and the single active selection.
package sink

import (
	"context"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// Stats is the per-sink snapshot the control API's GET /v1/outputs and
// GET /v1/outputs/metrics endpoints report.
type Stats struct {
	LatencyMs   float64
	ClipCount   int64
	Underruns   int64
	Overruns    int64
	BufferFill  float64 // 0..1
}

// Sink is the trait every output backend implements. Capabilities named
// in §4.3: name, open, write, drain, close, latency_ms, is_open, stats.
// All methods take a context so an implementation backed by network I/O
// (DLNA, ANP) can honor cancellation; purely local implementations (the
// local DAC) may ignore it once opened.
type Sink interface {
	Name() string
	Open(ctx context.Context, cfg audio.OutputConfig) error
	Write(ctx context.Context, block *audio.Block) error
	Drain(ctx context.Context) error
	Close(ctx context.Context) error
	LatencyMs() float64
	IsOpen() bool
	Stats() Stats
	// Capabilities reports what this sink supports, for GET /v1/capabilities.
	Capabilities() Capabilities
}

// Capabilities describes what a sink supports, independent of any
// currently-open configuration.
type Capabilities struct {
	SupportedRates   []int
	SupportedFormats []audio.SampleFormat
	MinChannels      int
	MaxChannels      int
	SupportsExclusive bool
	RequiresDiscovery bool
}
