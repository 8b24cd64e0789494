package anp

// Health is the periodic telemetry message sent over the control channel
// (§4.6.7): lifetime packet counters alongside the current jitter-buffer
// and Micro-PLL state.
type Health struct {
	Type              string   `json:"type"`
	PacketsReceived   int64    `json:"packets_received"`
	PacketsLost       int64    `json:"packets_lost"`
	CRCFailures       int64    `json:"crc_failures"`
	Jitter            Stats    `json:"jitter"`
	PLL               PLLStats `json:"micro_pll"`
}

// HealthCounters tracks the lifetime packet-level counters reported in
// every Health message, separate from the jitter buffer's own
// frame-played/missing counters since a packet can be lost entirely
// before ever reaching the buffer.
type HealthCounters struct {
	PacketsReceived int64
	PacketsLost     int64
	CRCFailures     int64
}

// Snapshot assembles a Health message from the current counters plus the
// live jitter buffer and PLL.
func (c *HealthCounters) Snapshot(jb *Buffer, pll *PLL) Health {
	return Health{
		Type:            "health",
		PacketsReceived: c.PacketsReceived,
		PacketsLost:     c.PacketsLost,
		CRCFailures:     c.CRCFailures,
		Jitter:          jb.GetStats(),
		PLL:             pll.GetStats(),
	}
}
