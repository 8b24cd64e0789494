// Package anp implements the ANP output sink (§4.6): a sink.Sink backed by
// an RTP/UDP audio stream and a WebSocket control channel, composing
// internal/anp's session negotiation, RTP codec, Micro-PLL, and health
// telemetry with internal/anp/wsctl and internal/anp/discovery.
package anp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aaeq-audio/aaeq/internal/anp"
	"github.com/aaeq-audio/aaeq/internal/anp/discovery"
	"github.com/aaeq-audio/aaeq/internal/anp/rtpwire"
	"github.com/aaeq-audio/aaeq/internal/anp/wsctl"
	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/ring"
	"github.com/aaeq-audio/aaeq/internal/sink"
)

// volumeCurve is the normalized-level-to-dB translation this sink reports
// in volume_result and advertises to a connecting peer (§4.6.6 recommends
// logarithmic).
const volumeCurve = anp.VolumeCurveLogarithmic

// frameDurationMs is the duration of audio each RTP packet carries. 20ms is
// the common RTP audio framing interval and keeps the jitter target
// achievable without excessive packet overhead.
const frameDurationMs = 20

// sessionInitRequest extends anp.SessionInit with the client's UDP
// listening endpoint, which has no natural home in the session negotiation
// types themselves (those are shared with a hypothetical ANP client
// implementation that doesn't need to tell itself its own address).
type sessionInitRequest struct {
	anp.SessionInit
	RTPPort int `json:"rtp_port"`
}

// volumeSetRequest is the volume/mute control message a peer may send at
// any point during an active session (§4.6.6, §6).
type volumeSetRequest struct {
	Type      string  `json:"type"`
	Level     float64 `json:"level"`
	Mute      bool    `json:"mute"`
	RampMs    float64 `json:"ramp_ms,omitempty"`
	RampShape string  `json:"ramp_shape,omitempty"`
}

// volumeResultMessage replies to volume_set and volume_get with the
// resulting normalized level/mute state and its translated gain in dB.
type volumeResultMessage struct {
	Type   string  `json:"type"`
	Level  float64 `json:"level"`
	Mute   bool    `json:"mute"`
	GainDB float64 `json:"gain_db"`
}

// dspUpdateRequest pushes a DSP profile identifier to apply; the sink
// itself does not own the EQ cascade (internal/profile.Reconfigurer does),
// so this only acknowledges receipt for the caller's tracking purposes.
type dspUpdateRequest struct {
	Type        string `json:"type"`
	ProfileHash string `json:"profile_hash"`
}

type dspUpdateAck struct {
	Type        string `json:"type"`
	ProfileHash string `json:"profile_hash"`
	Applied     bool   `json:"applied"`
}

// streamStateMessage acks a stream_pause or stream_stop request.
type streamStateMessage struct {
	Type string `json:"type"` // "stream_paused" | "stream_stopped"
}

// errorMessage is the node→server wire shape for a control-channel error
// (§6): code/category/severity plus a human message.
type errorMessage struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Details        string `json:"details,omitempty"`
	RecoveryAction string `json:"recovery_action,omitempty"`
}

// Sink is the ANP output sink. BindAddr is the local UDP address RTP
// packets are sent from; ControlAddr is the local HTTP address the
// WebSocket control channel and mDNS advertisement listen on.
type Sink struct {
	BindAddr    string
	ControlAddr string
	NodeUUID    string
	NodeName    string
	IdentityPath string

	mu              sync.Mutex
	udpConn         *net.UDPConn
	remoteAddr      *net.UDPAddr
	httpServer      *http.Server
	controlListener net.Listener
	advertiseCancel context.CancelFunc

	ring     *ring.Buffer
	cfg      audio.OutputConfig
	open     atomic.Bool

	seq       uint16
	timestamp uint32
	ssrc      uint32
	sinceCRC  int

	pll      *anp.PLL
	counters anp.HealthCounters
	ctrl     *wsctl.Conn

	volume         anp.VolumeState
	rampCancel     context.CancelFunc
	paused         atomic.Bool
	dspProfileHash string
}

// New creates an unopened ANP sink. rtpAddr and controlAddr are local
// bind addresses, e.g. ":7000" and ":7001".
func New(rtpAddr, controlAddr, nodeName, identityPath string) *Sink {
	return &Sink{
		BindAddr:     rtpAddr,
		ControlAddr:  controlAddr,
		NodeName:     nodeName,
		IdentityPath: identityPath,
		pll:          anp.NewPLL(anp.DefaultPLLConfig()),
		volume:       anp.VolumeState{Gain: 1.0},
	}
}

func (s *Sink) Name() string { return "anp" }

// Open binds the RTP socket, starts the control-channel HTTP server, and
// begins mDNS advertisement. It does not block on a client connecting;
// Write buffers into the ring regardless, and frames are only sent once a
// client has completed session negotiation over the control channel.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := anp.NodeIdentity(s.IdentityPath)
	if err != nil {
		return err
	}
	s.NodeUUID = id.String()

	laddr, err := net.ResolveUDPAddr("udp", s.BindAddr)
	if err != nil {
		return errors.New(err).Component("sink.anp").Category(errors.CategoryNetwork).Build()
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return errors.New(err).Component("sink.anp").Category(errors.CategoryNetwork).Build()
	}
	s.udpConn = conn
	s.ssrc = pseudoRandomSSRC(s.NodeUUID)

	s.ring = ring.New(cfg)
	s.cfg = cfg

	controlLn, err := net.Listen("tcp", s.ControlAddr)
	if err != nil {
		return errors.New(err).Component("sink.anp").Category(errors.CategoryNetwork).Build()
	}
	s.controlListener = controlLn

	e := echo.New()
	e.HideBanner = true
	e.GET("/control", s.handleControl)
	s.httpServer = &http.Server{Handler: e}
	go func() {
		if err := s.httpServer.Serve(controlLn); err != nil && err != http.ErrServerClosed {
			if logger := logging.ForService("sink-anp"); logger != nil {
				logger.Warn("anp control server stopped", "error", err)
			}
		}
	}()

	_, port, err := net.SplitHostPort(controlLn.Addr().String())
	advertisePort := 0
	if err == nil {
		advertisePort, _ = strconv.Atoi(port)
	}
	advertiseCtx, cancel := context.WithCancel(context.Background())
	s.advertiseCancel = cancel
	go func() {
		if err := discovery.Advertise(advertiseCtx, s.NodeName, advertisePort, s.NodeUUID); err != nil {
			if logger := logging.ForService("sink-anp"); logger != nil {
				logger.Warn("anp mdns advertise stopped", "error", err)
			}
		}
	}()

	s.open.Store(true)
	return nil
}

// ControlPublicAddr returns the control channel's actual listening address,
// including the OS-assigned port when ControlAddr was bound with ":0".
func (s *Sink) ControlPublicAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlListener == nil {
		return s.ControlAddr
	}
	return s.controlListener.Addr().String()
}

func (s *Sink) handleControl(c echo.Context) error {
	conn, err := wsctl.Upgrade(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ctrl = conn
	s.mu.Unlock()

	healthStop := make(chan struct{})
	go s.pushHealth(conn, healthStop)
	defer close(healthStop)

	return conn.Serve(c.Request().Context(), s.handleMessage)
}

func (s *Sink) handleMessage(msgType string, body json.RawMessage) (any, error) {
	switch msgType {
	case "session_init":
		var req sessionInitRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errors.New(err).Component("sink.anp").Category(errors.CategoryProtocol).Build()
		}
		if !majorVersionCompatible(req.ProtocolVersion) {
			return nil, s.rejectVersionMismatch(req.ProtocolVersion)
		}
		return s.acceptSession(req)

	case "volume_set":
		var req volumeSetRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errors.New(err).Component("sink.anp").Category(errors.CategoryProtocol).Build()
		}
		return s.applyVolumeSet(req), nil

	case "volume_get":
		s.mu.Lock()
		level, mute := s.volume.Gain, s.volume.Mute
		s.mu.Unlock()
		return volumeResultMessage{Type: "volume_result", Level: level, Mute: mute, GainDB: anp.GainDB(level, volumeCurve)}, nil

	case "dsp_update":
		var req dspUpdateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errors.New(err).Component("sink.anp").Category(errors.CategoryProtocol).Build()
		}
		s.mu.Lock()
		s.dspProfileHash = req.ProfileHash
		s.mu.Unlock()
		return dspUpdateAck{Type: "dsp_update_ack", ProfileHash: req.ProfileHash, Applied: true}, nil

	case "stream_pause":
		s.paused.Store(true)
		return streamStateMessage{Type: "stream_paused"}, nil

	case "stream_resume":
		s.paused.Store(false)
		return nil, nil

	case "stream_stop":
		s.mu.Lock()
		s.remoteAddr = nil
		s.mu.Unlock()
		s.paused.Store(false)
		return streamStateMessage{Type: "stream_stopped"}, nil

	default:
		return nil, nil
	}
}

// majorVersionCompatible reports whether offered's major version component
// matches this node's (§4.6.4: a major mismatch is fatal; minor mismatches
// degrade gracefully via feature negotiation).
func majorVersionCompatible(offered string) bool {
	return majorVersionOf(offered) == majorVersionOf(anp.ProtocolVersion)
}

func majorVersionOf(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

// rejectVersionMismatch sends an E201 error over the control channel and
// closes the connection shortly after, per §4.6.4's version rule. The
// reply is sent directly (rather than returned to wsctl.Serve) because
// Serve only logs and continues on a non-nil handler error; this session
// must terminate instead.
func (s *Sink) rejectVersionMismatch(offeredVersion string) error {
	msg := errorMessage{
		Type:     "error",
		Code:     string(errors.CodeVersionMismatch),
		Category: string(errors.CategoryProtocol),
		Severity: string(errors.SeverityFatal),
		Message:  fmt.Sprintf("protocol major version mismatch: node is %s, peer offered %s", anp.ProtocolVersion, offeredVersion),
	}

	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()

	if ctrl != nil {
		_ = ctrl.Send(msg)
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = ctrl.Close()
		}()
	}

	return errors.New(nil).Component("sink.anp").Category(errors.CategoryProtocol).ErrCode(errors.CodeVersionMismatch).
		Context("offered_version", offeredVersion).Build()
}

// applyVolumeSet updates the sink's volume state to req's target, either
// immediately (no ramp requested) or via a background ramp over
// req.RampMs following req.RampShape's easing curve.
func (s *Sink) applyVolumeSet(req volumeSetRequest) volumeResultMessage {
	level := req.Level
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	mute := req.Mute || level == 0

	s.mu.Lock()
	startLevel := s.volume.Gain
	if s.volume.Mute {
		startLevel = 0
	}
	if s.rampCancel != nil {
		s.rampCancel()
		s.rampCancel = nil
	}
	s.mu.Unlock()

	if req.RampMs <= 0 {
		s.mu.Lock()
		s.volume = anp.VolumeState{Gain: level, Mute: mute}
		s.mu.Unlock()
	} else {
		s.startVolumeRamp(startLevel, level, mute, req.RampMs, anp.ParseRampShape(req.RampShape))
	}

	return volumeResultMessage{
		Type:   "volume_result",
		Level:  level,
		Mute:   mute,
		GainDB: anp.GainDB(level, volumeCurve),
	}
}

// startVolumeRamp steps s.volume.Gain from startLevel to targetLevel over
// rampMs using shape's easing curve, ticking once per RTP frame interval
// until complete or superseded by a newer volume_set.
func (s *Sink) startVolumeRamp(startLevel, targetLevel float64, targetMute bool, rampMs float64, shape anp.RampShape) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.rampCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(frameDurationMs * time.Millisecond)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := float64(time.Since(start).Milliseconds())
				p := anp.RampProgress(shape, elapsed, rampMs)
				level := startLevel + (targetLevel-startLevel)*p
				done := p >= 1

				s.mu.Lock()
				s.volume = anp.VolumeState{Gain: level, Mute: targetMute && done}
				if done {
					s.rampCancel = nil
				}
				s.mu.Unlock()

				if done {
					return
				}
			}
		}
	}()
}

func (s *Sink) acceptSession(req sessionInitRequest) (anp.SessionAccept, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targetMs := float64(s.cfg.BufferMs)
	if targetMs <= 0 {
		targetMs = 200
	}
	accept := anp.BuildAccept(req.SessionInit, s.ssrc, s.seq, targetMs)

	if req.RTPPort > 0 {
		addr := net.JoinHostPort(s.peerHost(), strconv.Itoa(req.RTPPort))
		if raddr, err := net.ResolveUDPAddr("udp", addr); err == nil {
			s.remoteAddr = raddr
		}
	}

	return accept, nil
}

// peerHost is the client's IP the RTP stream should target. Extracting it
// from the control WebSocket's underlying connection would need a
// lower-level hook than echo.Context exposes, so it falls back to the RTP
// bind interface's own address, which resolves correctly for loopback and
// same-host deployments (the common case for a LAN audio node's control
// point running on the node itself).
func (s *Sink) peerHost() string {
	host, _, _ := net.SplitHostPort(s.udpConn.LocalAddr().String())
	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1"
	}
	return host
}

func (s *Sink) pushHealth(conn *wsctl.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			health := s.counters.Snapshot(anpJitterPlaceholder(), s.pll)
			s.mu.Unlock()
			_ = conn.Send(health)
		}
	}
}

// anpJitterPlaceholder returns an empty jitter buffer for health snapshots
// sent from the sink side. The jitter buffer itself (internal/anp.Buffer)
// smooths a *receiver's* view of incoming packets; an ANP output sink is
// the sender, so it has no jitter buffer of its own to report, but Health's
// wire shape always carries a jitter field, so an empty one is reported.
func anpJitterPlaceholder() *anp.Buffer {
	return anp.New(frameDurationMs, 200)
}

// Write slices block into frameDurationMs-sized RTP payloads and
// transmits each to the negotiated remote endpoint, if a client has
// completed session negotiation; otherwise frames are dropped (buffered
// only in the ring for LatencyMs/Stats reporting).
func (s *Sink) Write(ctx context.Context, block *audio.Block) error {
	s.mu.Lock()
	cfg := s.cfg
	remote := s.remoteAddr
	conn := s.udpConn
	r := s.ring
	s.mu.Unlock()

	if r == nil || conn == nil {
		return errors.New(nil).Component("sink.anp").Category(errors.CategoryState).Build()
	}

	wire := audio.ToWire(block, cfg.Format, nil)
	r.Write(wire)

	if remote == nil || s.paused.Load() {
		return nil
	}

	framesPerPacket := cfg.SampleRate * frameDurationMs / 1000
	bytesPerFrame := cfg.Channels * cfg.Format.BytesPerSample()
	if framesPerPacket == 0 || bytesPerFrame == 0 {
		return nil
	}
	bytesPerPacket := framesPerPacket * bytesPerFrame

	payloadType := rtpwire.PayloadTypeL16
	if cfg.Format == audio.FormatS24LE {
		payloadType = rtpwire.PayloadTypeL24
	}
	rtpCfg := rtpwire.DefaultConfig()

	// audio.ToWire packs little-endian for local/device consumption; ANP's
	// RTP payload requires network (big-endian) byte order (§4.6.1), so
	// every sample is explicitly swapped here rather than relying on
	// in-memory layout matching the wire format.
	netWire := toNetworkByteOrder(wire, cfg.Format.BytesPerSample())

	for off := 0; off+bytesPerPacket <= len(netWire); off += bytesPerPacket {
		s.mu.Lock()
		s.sinceCRC++
		includeCRC := s.sinceCRC >= rtpCfg.CRCWindow
		if includeCRC {
			s.sinceCRC = 0
		}
		pkt := rtpwire.Packet{
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
			PayloadType:    payloadType,
			Payload:        netWire[off : off+bytesPerPacket],
		}
		s.seq++
		s.timestamp += uint32(framesPerPacket)
		s.mu.Unlock()

		out, err := rtpwire.Marshal(rtpCfg, pkt, nil, includeCRC)
		if err != nil {
			return errors.New(err).Component("sink.anp").Category(errors.CategoryProtocol).Build()
		}
		if _, err := conn.WriteToUDP(out, remote); err != nil {
			s.mu.Lock()
			s.counters.PacketsLost++
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		s.counters.PacketsReceived++
		s.mu.Unlock()
	}
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

	if s.rampCancel != nil {
		s.rampCancel()
		s.rampCancel = nil
	}
	if s.advertiseCancel != nil {
		s.advertiseCancel()
		s.advertiseCancel = nil
	}
	if s.ctrl != nil {
		_ = s.ctrl.Close()
		s.ctrl = nil
	}
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.httpServer = nil
		s.controlListener = nil
	}
	if s.udpConn != nil {
		_ = s.udpConn.Close()
		s.udpConn = nil
	}
	s.remoteAddr = nil
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
		SupportedRates:    []int{44100, 48000, 96000},
		SupportedFormats:  []audio.SampleFormat{audio.FormatS16LE, audio.FormatS24LE},
		MinChannels:       1,
		MaxChannels:       8,
		SupportsExclusive: false,
		RequiresDiscovery: true,
	}
}

// toNetworkByteOrder reverses each bytesPerSample-wide sample's byte
// order. wire is untouched; the swapped copy is returned.
func toNetworkByteOrder(wire []byte, bytesPerSample int) []byte {
	if bytesPerSample <= 1 {
		return wire
	}
	out := make([]byte, len(wire))
	for off := 0; off+bytesPerSample <= len(wire); off += bytesPerSample {
		for j := 0; j < bytesPerSample; j++ {
			out[off+j] = wire[off+bytesPerSample-1-j]
		}
	}
	return out
}

// pseudoRandomSSRC derives a stable-per-node SSRC from the node's UUID
// string rather than drawing from crypto/rand, so the same node presents
// the same SSRC across restarts (useful for a receiver's reconnect logic,
// which may key per-sender state on SSRC).
func pseudoRandomSSRC(nodeUUID string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(nodeUUID); i++ {
		h ^= uint32(nodeUUID[i])
		h *= 16777619
	}
	if h == 0 {
		h = 1
	}
	return h
}
