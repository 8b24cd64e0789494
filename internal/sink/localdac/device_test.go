package localdac

import (
	"testing"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
)

func TestToMalgoFormatMapping(t *testing.T) {
	t.Parallel()

	cases := map[audio.SampleFormat]malgo.FormatType{
		audio.FormatF32:   malgo.FormatF32,
		audio.FormatS16LE: malgo.FormatS16,
		audio.FormatS24LE: malgo.FormatS24,
		audio.FormatS32LE: malgo.FormatS32,
	}
	for in, want := range cases {
		assert.Equal(t, want, toMalgoFormat(in))
	}
}

func TestBackendsForPlatformNeverEmpty(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, backendsForPlatform())
}

func TestCapabilitiesAdvertisesExclusiveAndWideRateRange(t *testing.T) {
	t.Parallel()

	s := New(-1)
	caps := s.Capabilities()
	assert.True(t, caps.SupportsExclusive)
	assert.False(t, caps.RequiresDiscovery)
	assert.Contains(t, caps.SupportedRates, 48000)
	assert.Contains(t, caps.SupportedFormats, audio.FormatF32)
}

func TestStatsBeforeOpenIsZeroValue(t *testing.T) {
	t.Parallel()

	s := New(-1)
	assert.False(t, s.IsOpen())
	assert.Equal(t, 0.0, s.LatencyMs())
	assert.Equal(t, int64(0), s.Stats().Underruns)
}
