package anp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillingTransitionsToBufferedAtStartThreshold(t *testing.T) {
	t.Parallel()

	b := New(20, 100) // threshold = 66ms -> 4 frames at 20ms each
	now := time.Now()
	for i := uint16(0); i < 3; i++ {
		b.Push(Frame{Sequence: i, Payload: []byte{byte(i)}}, now)
		assert.Equal(t, StateFilling, b.State())
	}
	b.Push(Frame{Sequence: 3, Payload: []byte{3}}, now)
	assert.Equal(t, StateBuffered, b.State())
}

func TestBeginTransitionsToPlayingAndPopDeliversInOrder(t *testing.T) {
	t.Parallel()

	b := New(20, 60) // threshold ~40ms -> 2 frames
	now := time.Now()
	b.Push(Frame{Sequence: 0, Payload: []byte{0}}, now)
	b.Push(Frame{Sequence: 1, Payload: []byte{1}}, now)
	require.Equal(t, StateBuffered, b.State())

	b.Begin()
	assert.Equal(t, StatePlaying, b.State())

	f, ok := b.Pop()
	require.True(t, ok)
	require.NotNil(t, f)
	assert.Equal(t, uint16(0), f.Sequence)

	f, ok = b.Pop()
	require.True(t, ok)
	require.NotNil(t, f)
	assert.Equal(t, uint16(1), f.Sequence)
}

func TestPopReturnsNilFrameOnGapWithoutStalling(t *testing.T) {
	t.Parallel()

	b := New(20, 40)
	now := time.Now()
	b.Push(Frame{Sequence: 0, Payload: []byte{0}}, now)
	b.Push(Frame{Sequence: 2, Payload: []byte{2}}, now) // 1 is missing
	b.Begin()
	if b.State() != StatePlaying {
		b.state = StatePlaying
	}

	f, ok := b.Pop()
	require.True(t, ok)
	require.NotNil(t, f)
	assert.Equal(t, uint16(0), f.Sequence)

	f, ok = b.Pop()
	require.True(t, ok)
	assert.Nil(t, f, "missing frame 1 should surface as nil for PLC")

	f, ok = b.Pop()
	require.True(t, ok)
	require.NotNil(t, f)
	assert.Equal(t, uint16(2), f.Sequence)

	stats := b.GetStats()
	assert.Equal(t, int64(2), stats.FramesPlayed)
	assert.Equal(t, int64(1), stats.FramesMissing)
}

func TestLateFrameBehindNextSeqIsDropped(t *testing.T) {
	t.Parallel()

	b := New(20, 40)
	now := time.Now()
	b.Push(Frame{Sequence: 5, Payload: []byte{5}}, now)
	b.slots[5] = nil // simulate playback having consumed 5 and advanced past it
	b.nextSeq = 6
	b.Push(Frame{Sequence: 5, Payload: []byte{5}}, now)

	assert.Nil(t, b.slots[5])
}

func TestSequenceWraparoundIsHandledBySignedDistance(t *testing.T) {
	t.Parallel()

	b := New(20, 40)
	now := time.Now()
	b.Push(Frame{Sequence: 65534, Payload: []byte{1}}, now)
	b.Push(Frame{Sequence: 65535, Payload: []byte{2}}, now)
	b.Push(Frame{Sequence: 0, Payload: []byte{3}}, now) // wraps past 65535

	require.NotNil(t, b.slots[65534&ringMask])
	require.NotNil(t, b.slots[65535&ringMask])
	require.NotNil(t, b.slots[0&ringMask])
}

func TestPruneIfStaleResetsAfterTimeout(t *testing.T) {
	t.Parallel()

	b := New(20, 40)
	b.staleAfter = 10 * time.Millisecond
	now := time.Now()
	b.Push(Frame{Sequence: 0, Payload: []byte{0}}, now)

	pruned := b.PruneIfStale(now.Add(time.Millisecond))
	assert.False(t, pruned)

	pruned = b.PruneIfStale(now.Add(50 * time.Millisecond))
	assert.True(t, pruned)
	assert.Equal(t, StateEmpty, b.State())
}

func TestResetClearsAllSlotsAndState(t *testing.T) {
	t.Parallel()

	b := New(20, 40)
	now := time.Now()
	b.Push(Frame{Sequence: 0, Payload: []byte{0}}, now)
	b.Reset()

	assert.Equal(t, StateEmpty, b.State())
	stats := b.GetStats()
	assert.Equal(t, 0.0, stats.BufferedMs)
}
