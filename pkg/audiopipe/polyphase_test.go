package audiopipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsamplerOutputLength(t *testing.T) {
	var u Upsampler
	var in [inFrameSamples]int16
	out := u.ProcessFrame(in)
	require.Len(t, out, outFrameSamples)
	require.Equal(t, 960, outFrameSamples)
}

// TestUpsamplerDCInvariant verifies spec §8's polyphase invariant: a
// constant (DC) input converges to the same constant output, within ±1
// LSB, once the tap history has filled with the constant.
func TestUpsamplerDCInvariant(t *testing.T) {
	var u Upsampler
	const dc int16 = 5000

	var in [inFrameSamples]int16
	for i := range in {
		in[i] = dc
	}

	// Warm up the filter history across a few frames.
	var out [outFrameSamples]int16
	for i := 0; i < 4; i++ {
		out = u.ProcessFrame(in)
	}

	tail := out[outFrameSamples-20:]
	for _, s := range tail {
		diff := int32(s) - int32(dc)
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqualf(t, diff, int32(1), "sample %d deviates from DC %d", s, dc)
	}
}
