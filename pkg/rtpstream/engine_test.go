package rtpstream

import (
	"net"
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, chan messages.MediaIn, chan messages.MediaOut) {
	mediaInCh := make(chan messages.MediaIn, 4)
	mediaOutCh := make(chan messages.MediaOut, 4)
	e := &Engine{
		log:        logging.New("rtp-test"),
		mediaInCh:  mediaInCh,
		mediaOutCh: mediaOutCh,
		localSSRC:  0xCAFEBABE,
	}
	return e, mediaInCh, mediaOutCh
}

var senderAddr = &net.UDPAddr{IP: net.ParseIP("192.0.2.5"), Port: 20000}

func TestStartStreamThenLearnsSSRCOnFirstPacket(t *testing.T) {
	e, mediaInCh, _ := newTestEngine()
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})
	require.True(t, e.active)
	require.Nil(t, e.expectedSSRC)

	raw, err := PackRTP(1, 160, 0x1234, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)

	e.handleRxPacket(rxPacket{addr: senderAddr, data: raw})
	require.NotNil(t, e.expectedSSRC)
	require.Equal(t, uint32(0x1234), *e.expectedSSRC)

	select {
	case in := <-mediaInCh:
		require.Equal(t, uint16(1), in.SequenceNumber)
	default:
		t.Fatal("expected the first accepted packet to be forwarded as MediaIn")
	}
}

func TestPacketFromWrongIPIsDroppedAfterLockOn(t *testing.T) {
	e, mediaInCh, _ := newTestEngine()
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})

	raw, err := PackRTP(1, 160, 0x1234, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)
	e.handleRxPacket(rxPacket{addr: senderAddr, data: raw})
	<-mediaInCh

	wrongAddr := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 20000}
	raw2, err := PackRTP(2, 320, 0x1234, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)
	e.handleRxPacket(rxPacket{addr: wrongAddr, data: raw2})

	select {
	case <-mediaInCh:
		t.Fatal("a packet from a non-signaled IP must be dropped")
	default:
	}
}

func TestPacketWithWrongSSRCIsDroppedOnceLockedOn(t *testing.T) {
	e, mediaInCh, _ := newTestEngine()
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})

	raw, err := PackRTP(1, 160, 0x1234, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)
	e.handleRxPacket(rxPacket{addr: senderAddr, data: raw})
	<-mediaInCh

	raw2, err := PackRTP(2, 320, 0x9999, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)
	e.handleRxPacket(rxPacket{addr: senderAddr, data: raw2})

	select {
	case <-mediaInCh:
		t.Fatal("a packet carrying a different SSRC than the locked-on one must be dropped")
	default:
	}
}

func TestSendOneUsesMediaOutFrameOverToneWhenAvailable(t *testing.T) {
	e, _, mediaOutCh := newTestEngine()
	e.conn = &discardPacketConn{}
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})

	var out messages.MediaOut
	out.Samples[0] = 123
	mediaOutCh <- out

	e.sendOne()
	require.Equal(t, uint16(1), e.seq)

	select {
	case <-mediaOutCh:
		t.Fatal("sendOne should have consumed the queued MediaOut frame")
	default:
	}
}

func TestSendOneFallsBackToToneWithNoMediaOutFrame(t *testing.T) {
	e, _, _ := newTestEngine()
	e.conn = &discardPacketConn{}
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})

	e.sendOne()
	require.Equal(t, uint16(1), e.seq)
	require.Equal(t, uint32(FrameSamples), e.timestamp)
}

func TestStopStreamClearsLockOnState(t *testing.T) {
	e, mediaInCh, _ := newTestEngine()
	e.handleCommand(messages.StartStream{RemoteIP: "192.0.2.5", RemotePort: 20000, PayloadType: 0})
	raw, err := PackRTP(1, 160, 0x1234, 0, EncodeFrame(make([]int16, FrameSamples)))
	require.NoError(t, err)
	e.handleRxPacket(rxPacket{addr: senderAddr, data: raw})
	<-mediaInCh

	e.handleCommand(messages.StopStream{})
	require.False(t, e.active)
	require.Nil(t, e.expectedSSRC)
	require.Nil(t, e.signaledAddr)
}

// discardPacketConn is a minimal net.PacketConn stub for exercising sendOne
// without a real socket.
type discardPacketConn struct{}

func (discardPacketConn) ReadFrom(p []byte) (int, net.Addr, error)     { return 0, nil, net.ErrClosed }
func (discardPacketConn) WriteTo(p []byte, addr net.Addr) (int, error) { return len(p), nil }
func (discardPacketConn) Close() error                                 { return nil }
func (discardPacketConn) LocalAddr() net.Addr                          { return senderAddr }
func (discardPacketConn) SetDeadline(t time.Time) error                { return nil }
func (discardPacketConn) SetReadDeadline(t time.Time) error            { return nil }
func (discardPacketConn) SetWriteDeadline(t time.Time) error           { return nil }
