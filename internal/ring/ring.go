// Package ring provides the single-producer single-consumer byte ring that
// bridges the DSP pipeline (writer) and a sink's device callback or HTTP
// response stream (reader). Sized in §4.4's terms: buffer_ms * sample_rate
// * channels * bytes_per_sample.
package ring

import (
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/smallnest/ringbuffer"
)

// Buffer wraps smallnest/ringbuffer with the fill/drain accounting the
// spec's local DAC and DLNA pull sinks report as stats: fill level in
// milliseconds, and lifetime underrun/overrun counters.
type Buffer struct {
	rb             *ringbuffer.RingBuffer
	bytesPerFrame  int
	sampleRate     int
	underruns      atomic.Int64
	overruns       atomic.Int64
}

// New allocates a ring sized for the given OutputConfig's buffer_ms at its
// sample rate/channel count/format.
func New(cfg audio.OutputConfig) *Buffer {
	bytesPerFrame := cfg.Channels * cfg.Format.BytesPerSample()
	if bytesPerFrame == 0 {
		bytesPerFrame = cfg.Channels * 4 // fall back to F32 sizing
	}
	capacityBytes := cfg.BufferFrames() * bytesPerFrame
	if capacityBytes < bytesPerFrame {
		capacityBytes = bytesPerFrame
	}
	return &Buffer{
		rb:            ringbuffer.New(capacityBytes),
		bytesPerFrame: bytesPerFrame,
		sampleRate:    cfg.SampleRate,
	}
}

// Write appends PCM bytes produced by the pipeline. On overflow (the ring
// is full) it drops the oldest bytes to make room, per the DLNA pull sink's
// documented "oldest audio is dropped on overflow" behavior, which this
// type also serves the local DAC sink with (there the write side never
// outruns the device callback in steady state, but a stalled device
// callback must not block the pipeline thread indefinitely).
func (b *Buffer) Write(data []byte) int {
	free := b.rb.Free()
	if len(data) > free {
		toDrop := len(data) - free
		if toDrop > 0 {
			discard := make([]byte, toDrop)
			b.rb.Read(discard) //nolint:errcheck // best-effort drain to make room
			b.overruns.Add(1)
		}
	}
	n, _ := b.rb.Write(data)
	return n
}

// Read drains up to len(p) bytes, returning how many were actually read.
// Reading past what has been written counts an underrun and zero-fills the
// remainder (silence) rather than blocking, matching the spec's "ring
// empty -> device callback receives silence" contract for the local DAC.
func (b *Buffer) Read(p []byte) int {
	n, _ := b.rb.Read(p)
	if n < len(p) {
		b.underruns.Add(1)
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
	}
	return n
}

// FillMs reports the current fill level translated to milliseconds of
// audio at the configured sample rate.
func (b *Buffer) FillMs() float64 {
	if b.bytesPerFrame == 0 || b.sampleRate == 0 {
		return 0
	}
	frames := b.rb.Length() / b.bytesPerFrame
	return 1000 * float64(frames) / float64(b.sampleRate)
}

// Underruns returns the lifetime count of reads that found less data than
// requested.
func (b *Buffer) Underruns() int64 { return b.underruns.Load() }

// Overruns returns the lifetime count of writes that had to drop data to
// make room.
func (b *Buffer) Overruns() int64 { return b.overruns.Load() }

// Reset clears the ring and drops accumulated stats, used when a sink
// reopens with a new configuration.
func (b *Buffer) Reset() {
	b.rb.Reset()
	b.underruns.Store(0)
	b.overruns.Store(0)
}
