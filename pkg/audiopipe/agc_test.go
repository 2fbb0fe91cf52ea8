package audiopipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAGCIncreasesGainOnQuietFrame(t *testing.T) {
	a := NewAGC()
	a.gainQ12 = 4096 // start at 1.0x for a clean assertion

	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = 3000 // well above the noise gate, below target
	}

	gain, rms := a.ProcessFrame(frame)
	require.Greater(t, rms, int32(0))
	require.GreaterOrEqual(t, gain, int32(4096))
}

func TestAGCNoiseGateHoldsGain(t *testing.T) {
	a := NewAGC()
	a.gainQ12 = 4096

	frame := make([]int16, 160) // silence: rms well below noise gate
	gain, _ := a.ProcessFrame(frame)
	require.Equal(t, int32(4096), gain)
}

func TestAGCLimiterClampsOutput(t *testing.T) {
	a := NewAGC()
	a.gainQ12 = a.maxGainQ12

	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = 30000
	}
	a.ProcessFrame(frame)
	for _, s := range frame {
		require.LessOrEqual(t, s, int16(32767))
		require.GreaterOrEqual(t, s, int16(-32768))
	}
}

func TestIsqrtU32(t *testing.T) {
	require.Equal(t, uint32(0), isqrtU32(0))
	require.Equal(t, uint32(3), isqrtU32(9))
	require.Equal(t, uint32(4), isqrtU32(16))
	require.Equal(t, uint32(10), isqrtU32(100))
}
