package rtpstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUlawZeroCodes(t *testing.T) {
	assert.Equal(t, int16(0), DecodeUlaw(0xFF))
	assert.Equal(t, int16(0), DecodeUlaw(0x7F))
}

func TestUlawEncodeZero(t *testing.T) {
	assert.Equal(t, byte(0xFF), EncodeUlaw(0))
}

func TestUlawRoundTripApprox(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32000, -32000, 100, -100, 5, -5}
	for _, s := range samples {
		b := EncodeUlaw(s)
		d := DecodeUlaw(b)
		if (s >= 0) != (d >= 0) && s != 0 && d != 0 {
			t.Fatalf("sample %d round-tripped to %d via 0x%02x: sign flipped", s, d, b)
		}
		diff := int32(s) - int32(d)
		if diff < 0 {
			diff = -diff
		}
		tolerance := int32(s) / 32
		if tolerance < 0 {
			tolerance = -tolerance
		}
		if tolerance < 32 {
			tolerance = 32
		}
		assert.LessOrEqualf(t, diff, tolerance, "sample %d round-tripped to %d via 0x%02x", s, d, b)
	}
}

func TestUlawFrameRoundTrip(t *testing.T) {
	pcm := make([]int16, 160)
	for i := range pcm {
		pcm[i] = int16(i * 10)
	}
	encoded := EncodeFrame(pcm)
	assert.Len(t, encoded, 160)
	decoded := DecodeFrame(encoded)
	assert.Len(t, decoded, 160)
}
