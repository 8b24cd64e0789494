package dlna

import (
	"encoding/binary"

	"github.com/aaeq-audio/aaeq/internal/audio"
)

// writeWAVHeader writes the 44-byte canonical RIFF/WAVE header for PCM
// audio. dataSize may be 0xFFFFFFFF-ish (left as the placeholder maximum)
// for a streamed, indeterminate-length body, since the DLNA pull endpoint
// never knows its final size up front.
func writeWAVHeader(cfg audio.OutputConfig, dataSize uint32) []byte {
	bitsPerSample := cfg.Format.BytesPerSample() * 8
	byteRate := cfg.SampleRate * cfg.Channels * cfg.Format.BytesPerSample()
	blockAlign := cfg.Channels * cfg.Format.BytesPerSample()

	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size (PCM)
	binary.LittleEndian.PutUint16(h[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(cfg.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(cfg.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}
