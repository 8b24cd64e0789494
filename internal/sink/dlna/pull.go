// Package dlna implements the DLNA/UPnP output sink (§4.5): pull mode
// (chunked HTTP WAV + JSON status) and push mode (SSDP discovery + SOAP
// AVTransport control), sharing one sink.Sink implementation.
package dlna

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/ring"
	"github.com/aaeq-audio/aaeq/internal/sink"
)

// Mode selects whether the sink waits for a renderer to pull the stream or
// actively pushes a SetAVTransportURI/Play to a discovered device.
type Mode int

const (
	ModePull Mode = iota
	ModePush
)

type statusResponse struct {
	Active      bool               `json:"active"`
	Config      audio.OutputConfig `json:"config"`
	Clients     int                `json:"clients"`
	BufferBytes int                `json:"buffer_bytes"`
}

// Sink is the DLNA output sink. BindAddr is the local address the pull
// HTTP server listens on; in push mode it is also the address advertised
// in the DIDL-Lite <res> URI the renderer is told to pull from.
type Sink struct {
	BindAddr string
	Mode     Mode
	Profile  deviceProfile

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	ring     *ring.Buffer
	cfg      audio.OutputConfig
	open     atomic.Bool
	clients  atomic.Int32

	push *pushController // nil in ModePull
}

// New creates an unopened DLNA sink bound to addr.
func New(addr string, mode Mode) *Sink {
	return &Sink{BindAddr: addr, Mode: mode, Profile: defaultProfile}
}

func (s *Sink) Name() string {
	if s.Mode == ModePush {
		return "dlna_push"
	}
	return "dlna_pull"
}

// Open starts the HTTP server (both modes run it, since push mode also
// serves the stream the renderer pulls from after SetAVTransportURI) and,
// in push mode, discovers and engages a renderer.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.BufferMs < s.Profile.MinBufferMs {
		cfg.BufferMs = s.Profile.MinBufferMs
	}

	ln, err := net.Listen("tcp", s.BindAddr)
	if err != nil {
		return errors.New(err).
			Component("sink.dlna").
			Category(errors.CategoryNetwork).
			Build()
	}

	r := ring.New(cfg)
	s.ring = r
	s.cfg = cfg

	mux := http.NewServeMux()
	mux.HandleFunc("/stream.wav", s.handleStream)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{Handler: mux}
	s.listener = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			if logger := logging.ForService("sink-dlna"); logger != nil {
				logger.Warn("dlna http server stopped", "error", err)
			}
		}
	}()

	s.open.Store(true)

	if s.Mode == ModePush {
		streamURL := "http://" + s.listener.Addr().String() + "/stream.wav"
		pc, err := startPush(ctx, streamURL)
		if err != nil {
			return err
		}
		s.push = pc
	}
	return nil
}

func (s *Sink) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.cfg
	ring := s.ring
	s.mu.Unlock()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)

	w.Write(writeWAVHeader(cfg, 0xFFFFFFFF))

	s.clients.Add(1)
	defer s.clients.Add(-1)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			n := ring.Read(buf)
			if n > 0 {
				if _, err := w.Write(buf[:n]); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}
}

func (s *Sink) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		Active:      s.open.Load(),
		Config:      s.cfg,
		Clients:     int(s.clients.Load()),
		BufferBytes: 0,
	}
	if s.ring != nil {
		bytesPerSec := s.cfg.SampleRate * s.cfg.Channels * s.cfg.Format.BytesPerSample()
		resp.BufferBytes = int(s.ring.FillMs() * float64(bytesPerSec) / 1000)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Sink) Write(ctx context.Context, block *audio.Block) error {
	s.mu.Lock()
	r := s.ring
	cfg := s.cfg
	s.mu.Unlock()
	if r == nil {
		return errors.New(nil).Component("sink.dlna").Category(errors.CategoryState).Build()
	}
	r.Write(audio.ToWire(block, cfg.Format, nil))
	return nil
}

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

func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Mode == ModePush && s.push != nil {
		_ = s.push.stop(ctx)
		s.push = nil
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
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
		SupportedRates:    []int{44100, 48000},
		SupportedFormats:  []audio.SampleFormat{audio.FormatS16LE, audio.FormatS24LE},
		MinChannels:       1,
		MaxChannels:       2,
		SupportsExclusive: false,
		RequiresDiscovery: s.Mode == ModePush,
	}
}
