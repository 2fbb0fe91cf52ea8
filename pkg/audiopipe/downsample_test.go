package audiopipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownsamplePairAverage(t *testing.T) {
	in := []int16{100, 200, 300, 400, 0, 0}
	out := DownsamplePairAverage(in)
	require.Equal(t, []int16{150, 350, 0}, out)
}

func TestDownsampleHalvesLength(t *testing.T) {
	in := make([]int16, 320)
	out := DownsamplePairAverage(in)
	require.Len(t, out, 160)
}
