// Package localdac implements the Local DAC output sink (§4.4): playback
// through the host audio API's callback model, bridged from the pipeline
// writer thread via a ring.Buffer.
package localdac

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/ring"
	"github.com/aaeq-audio/aaeq/internal/sink"
	"github.com/gen2brain/malgo"
)

// Sink is the Local DAC output backend. It prefers the configured format
// (typically F32) and falls back to S16LE once, per the spec's "Device/IO
// ... attempt one automatic fallback (F32->S16LE, native rate restart)
// before reporting."
type Sink struct {
	mu          sync.Mutex
	ctx         *malgo.AllocatedContext
	device      *malgo.Device
	ring        *ring.Buffer
	cfg         audio.OutputConfig
	open        atomic.Bool
	fellBack    bool
	xruns       atomic.Int64
	exclusive   bool
	deviceIndex int // index into malgo's enumerated playback devices, -1 for default
}

// New creates an unopened Local DAC sink targeting the given device
// enumeration index (-1 selects the system default device).
func New(deviceIndex int) *Sink {
	return &Sink{deviceIndex: deviceIndex}
}

func (s *Sink) Name() string { return "local_dac" }

func backendsForPlatform() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa, malgo.BackendPulseaudio}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return []malgo.Backend{malgo.BackendNull}
	}
}

func toMalgoFormat(f audio.SampleFormat) malgo.FormatType {
	switch f {
	case audio.FormatF32:
		return malgo.FormatF32
	case audio.FormatS16LE:
		return malgo.FormatS16
	case audio.FormatS24LE:
		return malgo.FormatS24
	case audio.FormatS32LE:
		return malgo.FormatS32
	default:
		return malgo.FormatF32
	}
}

// Open initializes the malgo context and playback device for cfg, trying
// cfg.Format first (F32 when unset). If that fails and the format is not
// S16LE, it retries once with S16LE; an S16LE failure is returned directly.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logging.ForService("sink-localdac")

	format := cfg.Format
	if format == audio.FormatUnknown {
		format = audio.FormatF32
	}

	mctx, err := malgo.InitContext(backendsForPlatform(), malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component("sink.localdac").
			Category(errors.CategoryDeviceIO).
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = toMalgoFormat(format)
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(cfg.BufferMs / 4)

	r := ring.New(cfg)
	bytesPerFrame := cfg.Channels * format.BytesPerSample()

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			need := int(frameCount) * bytesPerFrame
			r.Read(output[:need])
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil && format != audio.FormatS16LE {
		// automatic fallback: F32 (or whatever was requested) -> S16LE
		if logger != nil {
			logger.Warn("local dac open failed, falling back to s16le", "error", err)
		}
		format = audio.FormatS16LE
		deviceConfig.Playback.Format = malgo.FormatS16
		bytesPerFrame = cfg.Channels * format.BytesPerSample()
		device, err = malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
		s.fellBack = true
	}
	if err != nil {
		_ = mctx.Uninit()
		return errors.New(err).
			Component("sink.localdac").
			Category(errors.CategoryDeviceIO).
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		return errors.New(err).
			Component("sink.localdac").
			Category(errors.CategoryDeviceIO).
			Build()
	}

	s.ctx = mctx
	s.device = device
	s.ring = r
	s.cfg = cfg
	s.cfg.Format = format
	s.open.Store(true)
	return nil
}

// Write encodes block to the sink's opened wire format and appends it to
// the ring the device callback drains.
func (s *Sink) Write(ctx context.Context, block *audio.Block) error {
	if !s.open.Load() {
		return errors.New(nil).
			Component("sink.localdac").
			Category(errors.CategoryState).
			Build()
	}
	s.mu.Lock()
	format := s.cfg.Format
	r := s.ring
	s.mu.Unlock()

	wire := audio.ToWire(block, format, nil)
	r.Write(wire)
	return nil
}

// Drain blocks until the ring has emptied or the context is canceled,
// whichever comes first.
func (s *Sink) Drain(ctx context.Context) error {
	s.mu.Lock()
	r := s.ring
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	for r.FillMs() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Close stops and releases the malgo device and context.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx = nil
	}
	s.open.Store(false)
	return nil
}

func (s *Sink) LatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return 0
	}
	return s.ring.FillMs()
}

func (s *Sink) IsOpen() bool { return s.open.Load() }

func (s *Sink) Stats() sink.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return sink.Stats{}
	}
	return sink.Stats{
		LatencyMs: s.ring.FillMs(),
		Underruns: s.ring.Underruns(),
		Overruns:  s.ring.Overruns(),
	}
}

func (s *Sink) Capabilities() sink.Capabilities {
	return sink.Capabilities{
		SupportedRates:    []int{44100, 48000, 88200, 96000, 176400, 192000},
		SupportedFormats:  []audio.SampleFormat{audio.FormatF32, audio.FormatS16LE, audio.FormatS24LE, audio.FormatS32LE},
		MinChannels:       1,
		MaxChannels:       8,
		SupportsExclusive: true,
		RequiresDiscovery: false,
	}
}
