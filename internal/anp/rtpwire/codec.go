// Package rtpwire implements ANP's RTP audio transport (§4.6.1-2): packet
// marshal/parse over github.com/pion/rtp, RFC 5285 one-byte header
// extensions carrying gapless track markers and a periodic CRC32, and
// timestamp/sequence arithmetic that correctly handles uint32/uint16
// wraparound.
package rtpwire

import (
	"hash/crc32"

	"github.com/pion/rtp"
)

// Payload types negotiated in session_accept.rtp_config (§4.6.4).
const (
	PayloadTypeL24 uint8 = 96
	PayloadTypeL16 uint8 = 97
)

// Extension IDs negotiated per session; these are the values a session
// picks by default absent a conflicting negotiation.
const (
	DefaultGaplessExtensionID uint8 = 1
	DefaultCRCExtensionID     uint8 = 2
)

// GaplessMarker is the one-byte RFC 5285 extension payload signaling
// track boundaries: T (track-end imminent) and S (stream/track start).
type GaplessMarker struct {
	TrackEnd bool
	Start    bool
}

func (m GaplessMarker) encode() byte {
	var b byte
	if m.TrackEnd {
		b |= 0x01
	}
	if m.Start {
		b |= 0x02
	}
	return b
}

func decodeGaplessMarker(b byte) GaplessMarker {
	return GaplessMarker{
		TrackEnd: b&0x01 != 0,
		Start:    b&0x02 != 0,
	}
}

// Packet is one outgoing/incoming RTP audio packet plus its decoded ANP
// extensions.
type Packet struct {
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	PayloadType    uint8
	Payload        []byte
	Gapless        *GaplessMarker // non-nil iff the gapless extension was present
	CRC32          *uint32        // non-nil iff the CRC extension was present
}

// Config carries the negotiated extension IDs and CRC window. Marshal
// does not count packets itself: the sender uses CRCWindow to decide when
// to pass includeCRC.
type Config struct {
	GaplessExtensionID uint8
	CRCExtensionID     uint8
	CRCWindow          int // send CRC every CRCWindow packets (default 64)
}

// DefaultConfig returns the negotiation defaults named in §4.6.2.
func DefaultConfig() Config {
	return Config{
		GaplessExtensionID: DefaultGaplessExtensionID,
		CRCExtensionID:     DefaultCRCExtensionID,
		CRCWindow:          64,
	}
}

// Marshal builds the wire bytes for pkt. gapless and includeCRC control
// which one-byte extensions are attached; when includeCRC is true the
// CRC32 (IEEE 802.3, payload-only) is computed and attached.
func Marshal(cfg Config, pkt Packet, gapless *GaplessMarker, includeCRC bool) ([]byte, error) {
	hasExt := gapless != nil || includeCRC

	header := rtp.Header{
		Version:          2,
		Padding:          false,
		Extension:        hasExt,
		ExtensionProfile: 0xBEDE, // RFC 5285 one-byte form
		Marker:           false,
		PayloadType:    pkt.PayloadType,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
	}

	p := &rtp.Packet{Header: header, Payload: pkt.Payload}

	if gapless != nil {
		if err := p.Header.SetExtension(cfg.GaplessExtensionID, []byte{gapless.encode()}); err != nil {
			return nil, err
		}
	}
	if includeCRC {
		sum := crc32.ChecksumIEEE(pkt.Payload)
		// "length field encoded as actual_bytes - 1 = 3" (4 data bytes).
		buf := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
		if err := p.Header.SetExtension(cfg.CRCExtensionID, buf); err != nil {
			return nil, err
		}
	}

	return p.Marshal()
}

// Parse decodes wire bytes into a Packet, extracting any gapless/CRC
// extensions present.
func Parse(cfg Config, wire []byte) (Packet, error) {
	var p rtp.Packet
	if err := p.Unmarshal(wire); err != nil {
		return Packet{}, err
	}

	out := Packet{
		SequenceNumber: p.Header.SequenceNumber,
		Timestamp:      p.Header.Timestamp,
		SSRC:           p.Header.SSRC,
		PayloadType:    p.Header.PayloadType,
		Payload:        p.Payload,
	}

	if p.Header.Extension {
		if raw := p.Header.GetExtension(cfg.GaplessExtensionID); len(raw) >= 1 {
			m := decodeGaplessMarker(raw[0])
			out.Gapless = &m
		}
		if raw := p.Header.GetExtension(cfg.CRCExtensionID); len(raw) >= 4 {
			sum := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
			out.CRC32 = &sum
		}
	}

	return out, nil
}

// VerifyCRC reports whether payload matches the IEEE 802.3 CRC32 declared
// in want.
func VerifyCRC(payload []byte, want uint32) bool {
	return crc32.ChecksumIEEE(payload) == want
}

// SeqGreaterThan reports whether a comes strictly after b in RTP sequence
// space, correctly handling the 16-bit wraparound at 65536.
func SeqGreaterThan(a, b uint16) bool {
	return int16(a-b) > 0
}

// TimestampGreaterThan reports whether a comes strictly after b in RTP
// timestamp space, correctly handling the 32-bit wraparound at 2^32.
func TimestampGreaterThan(a, b uint32) bool {
	return int32(a-b) > 0
}
