package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsOutOfRangeBuffer(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.DSP.DefaultBufferMs = 10
	s.DSP.TargetBitDepth = 16
	s.ANP.DiscoveryCacheS = 30
	s.Profiles.Default = "Default"

	err := validate(s)
	assert.ErrorContains(t, err, "defaultbufferms")
}

func TestValidateRejectsOutOfRangeBitDepth(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.DSP.DefaultBufferMs = 200
	s.DSP.TargetBitDepth = 32
	s.ANP.DiscoveryCacheS = 30
	s.Profiles.Default = "Default"

	err := validate(s)
	assert.ErrorContains(t, err, "targetbitdepth")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.DSP.DefaultBufferMs = 200
	s.DSP.TargetBitDepth = 16
	s.ANP.DiscoveryCacheS = 30
	s.Profiles.Default = "Default"

	assert.NoError(t, validate(s))
}

func TestGetSetRoundTrip(t *testing.T) {
	want := &Settings{}
	want.Main.NodeName = "test-node"
	Set(want)
	assert.Same(t, want, Get())
}
