package rtpstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackRTPRoundTrip(t *testing.T) {
	payload := []byte{0xFF, 0x01, 0x02, 0x03}
	raw, err := PackRTP(1234, 5678, 0xDEADBEEF, 0, payload)
	require.NoError(t, err)
	require.Len(t, raw, 12+len(payload))

	seq, ts, ssrc, pt, got, err := UnpackRTP(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(1234), seq)
	require.Equal(t, uint32(5678), ts)
	require.Equal(t, uint32(0xDEADBEEF), ssrc)
	require.Equal(t, uint8(0), pt)
	require.Equal(t, payload, got)
}
