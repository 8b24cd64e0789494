package anp

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/google/uuid"
)

// ProtocolVersion is the ANP version this implementation negotiates.
const ProtocolVersion = "0.4"

// RTPConfig is the negotiated transport configuration sent in
// session_accept (§4.6.4).
type RTPConfig struct {
	SSRC               uint32 `json:"ssrc"`
	PayloadType         uint8  `json:"payload_type"`
	InitialSequence     uint16 `json:"initial_sequence"`
	GaplessExtensionID  uint8  `json:"gapless_extension_id"`
	CRCExtensionID      uint8  `json:"crc_extension_id"`
	CRCWindow           int    `json:"crc_window"`
}

// MicroPLLParams mirrors the negotiated control-loop parameters (§4.6.6).
type MicroPLLParams struct {
	AdjustmentIntervalMs int     `json:"adjustment_interval_ms"`
	EMAWindow            int     `json:"ema_window"`
	PPMLimit             float64 `json:"ppm_limit"`
}

// BufferContract is the negotiated jitter-buffer sizing (§4.6.5).
type BufferContract struct {
	TargetMs         float64 `json:"target_ms"`
	StartThresholdMs float64 `json:"start_threshold_ms"`
}

// VolumeState is the initial volume reported/accepted at session start.
type VolumeState struct {
	Gain float64 `json:"gain"`
	Mute bool    `json:"mute"`
}

// SessionInit is the client's opening control-channel message.
type SessionInit struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	NodeUUID        string   `json:"node_uuid"`
	NodeName        string   `json:"node_name"`
	OfferedFeatures []string `json:"offered_features"`
}

// SessionAccept is the node's reply, carrying all negotiated parameters.
type SessionAccept struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ActiveFeatures  []string       `json:"active_features"`
	RTPConfig       RTPConfig      `json:"rtp_config"`
	MicroPLL        MicroPLLParams `json:"micro_pll"`
	Buffer          BufferContract `json:"buffer"`
	Volume          VolumeState    `json:"volume"`
}

// Capabilities lists the features this node supports, advertised in
// discovery and intersected against a client's offered_features.
var Capabilities = []string{"gapless", "crc_check", "micro_pll", "volume_control"}

// NegotiateFeatures returns the intersection of offered and supported,
// preserving the offered order.
func NegotiateFeatures(offered []string) []string {
	supported := make(map[string]bool, len(Capabilities))
	for _, f := range Capabilities {
		supported[f] = true
	}
	var active []string
	for _, f := range offered {
		if supported[strings.ToLower(strings.TrimSpace(f))] {
			active = append(active, f)
		}
	}
	return active
}

// BuildAccept assembles a SessionAccept for init from the negotiated
// SSRC, initial sequence number and jitter-buffer target.
func BuildAccept(init SessionInit, ssrc uint32, initialSeq uint16, targetMs float64) SessionAccept {
	return SessionAccept{
		Type:            "session_accept",
		ProtocolVersion: ProtocolVersion,
		ActiveFeatures:  NegotiateFeatures(init.OfferedFeatures),
		RTPConfig: RTPConfig{
			SSRC:               ssrc,
			PayloadType:        96,
			InitialSequence:    initialSeq,
			GaplessExtensionID: 1,
			CRCExtensionID:     2,
			CRCWindow:          64,
		},
		MicroPLL: MicroPLLParams{
			AdjustmentIntervalMs: 100,
			EMAWindow:            8,
			PPMLimit:             150,
		},
		Buffer: BufferContract{
			TargetMs:         targetMs,
			StartThresholdMs: targetMs * 0.66,
		},
		Volume: VolumeState{Gain: 1.0, Mute: false},
	}
}

// NodeIdentity loads a node's persistent UUID from path, generating and
// persisting a new one if the file does not exist yet. A stable UUID
// across restarts lets clients recognize a returning node through
// renames or IP changes.
func NodeIdentity(path string) (uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id, parseErr := uuid.Parse(strings.TrimSpace(string(data)))
		if parseErr == nil {
			return id, nil
		}
	}

	id := uuid.New()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return uuid.Nil, errors.New(err).
			Component("anp").
			Category(errors.CategoryState).
			Context("path", path).
			Build()
	}
	if err := os.WriteFile(path, []byte(id.String()), 0o644); err != nil {
		return uuid.Nil, errors.New(err).
			Component("anp").
			Category(errors.CategoryState).
			Context("path", path).
			Build()
	}
	return id, nil
}
