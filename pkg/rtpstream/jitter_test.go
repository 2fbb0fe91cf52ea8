package rtpstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func payloadFrame(v int16) [FrameSamples]int16 {
	var f [FrameSamples]int16
	f[0] = v
	return f
}

// TestJitterReorderingScenario mirrors the spec's literal scenario 5: push
// sequences [2, 1, 4] of distinct payloads, pop 5; expect
// payload(1), payload(2), silence, payload(4), silence.
func TestJitterReorderingScenario(t *testing.T) {
	b := NewBuffer()
	b.Push(2, payloadFrame(2))
	b.Push(1, payloadFrame(1))
	b.Push(4, payloadFrame(4))

	require.Equal(t, payloadFrame(1), b.Pop())
	require.Equal(t, payloadFrame(2), b.Pop())
	require.Equal(t, [FrameSamples]int16{}, b.Pop())
	require.Equal(t, payloadFrame(4), b.Pop())
	require.Equal(t, [FrameSamples]int16{}, b.Pop())
}

func TestJitterPopFromEmptyYieldsSilence(t *testing.T) {
	b := NewBuffer()
	require.Equal(t, [FrameSamples]int16{}, b.Pop())
}

func TestJitterDuplicateSequenceIgnored(t *testing.T) {
	b := NewBuffer()
	b.Push(5, payloadFrame(5))
	b.Push(5, payloadFrame(99))
	require.Equal(t, 1, b.Len())
}

func TestJitterOverflowEvictsOldest(t *testing.T) {
	b := NewBuffer()
	for i := uint16(0); i < Cap; i++ {
		b.Push(i, payloadFrame(int16(i)))
	}
	require.Equal(t, Cap, b.Len())
	// Pushing one more evicts the oldest-inserted entry (sequence 0).
	b.Push(Cap, payloadFrame(int16(Cap)))
	require.Equal(t, Cap, b.Len())

	first := b.Pop()
	require.NotEqual(t, payloadFrame(0), first)
}
