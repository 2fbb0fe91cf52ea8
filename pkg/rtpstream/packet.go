package rtpstream

import "github.com/pion/rtp"

// PackRTP serializes one 12-byte fixed RTP header plus payload, per spec
// §4.4/§8's exact-bit round-trip invariant. Marker and CSRC are never set
// by this stack.
func PackRTP(seq uint16, timestamp uint32, ssrc uint32, payloadType uint8, payload []byte) ([]byte, error) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadType,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	return pkt.Marshal()
}

// UnpackRTP parses a raw UDP datagram into its header fields and payload.
func UnpackRTP(raw []byte) (seq uint16, timestamp uint32, ssrc uint32, payloadType uint8, payload []byte, err error) {
	pkt := &rtp.Packet{}
	if err = pkt.Unmarshal(raw); err != nil {
		return 0, 0, 0, 0, nil, err
	}
	return pkt.SequenceNumber, pkt.Timestamp, pkt.SSRC, pkt.PayloadType, pkt.Payload, nil
}
