package rtpstream

import (
	"fmt"
	"net"
	"time"

	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/metrics"
)

const rxBufSize = 1500

// tick is the fixed TX cadence: one 20ms PCMU frame per tick.
const tick = 20 * time.Millisecond

// Engine is the RTP task: it owns the UDP media socket exclusively, accepts
// RtpCommand from the SIP task, forwards accepted inbound packets to the
// Audio task as MediaIn, and transmits one frame per tick pulled from
// MediaOut (or, absent one, a fallback tone), per spec §4.4. Grounded on
// original_source/app/src/tasks/rtp.rs, reworked into Go's channel-select
// idiom in place of the Rust source's blocking-with-sleep loop.
type Engine struct {
	conn net.PacketConn
	log  logging.Logger

	cmdCh      <-chan messages.RtpCommand
	mediaInCh  chan<- messages.MediaIn
	mediaOutCh <-chan messages.MediaOut

	randomU32 hal.RandomU32

	active bool

	signaledAddr *net.UDPAddr
	observedAddr *net.UDPAddr
	signaledIP   net.IP

	expectedSSRC    *uint32
	payloadType     *uint8
	localSSRC       uint32
	seq             uint16
	timestamp       uint32
	tone            ToneGenerator
}

// NewEngine constructs an RTP task engine bound to an already-opened UDP
// socket, per spec §3's "each task exclusively owns its external resource".
func NewEngine(conn net.PacketConn, randomU32 hal.RandomU32, cmdCh <-chan messages.RtpCommand, mediaInCh chan<- messages.MediaIn, mediaOutCh <-chan messages.MediaOut) *Engine {
	return &Engine{
		conn:       conn,
		log:        logging.New("rtp"),
		cmdCh:      cmdCh,
		mediaInCh:  mediaInCh,
		mediaOutCh: mediaOutCh,
		randomU32:  randomU32,
		localSSRC:  randomU32(),
	}
}

// Run drives the task loop until stopCh is closed.
func (e *Engine) Run(stopCh <-chan struct{}) {
	e.log.Info("rtp task started")

	rxCh := make(chan rxPacket, 8)
	go e.readLoop(rxCh)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			e.log.Info("rtp task stopping")
			return
		case cmd := <-e.cmdCh:
			e.handleCommand(cmd)
		case pkt := <-rxCh:
			e.handleRxPacket(pkt)
		case <-ticker.C:
			if e.active {
				e.sendOne()
			}
		}
	}
}

type rxPacket struct {
	addr *net.UDPAddr
	data []byte
}

func (e *Engine) readLoop(out chan<- rxPacket) {
	buf := make([]byte, rxBufSize)
	for {
		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		out <- rxPacket{addr: udpAddr, data: cp}
	}
}

func (e *Engine) handleCommand(cmd messages.RtpCommand) {
	switch c := cmd.(type) {
	case messages.StartStream:
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.RemoteIP, c.RemotePort))
		if err != nil {
			e.log.Warn("rtp start: invalid remote addr", logging.F("addr", c.RemoteIP), logging.F("err", err.Error()))
			return
		}
		e.signaledAddr = addr
		e.signaledIP = addr.IP
		e.observedAddr = nil
		e.expectedSSRC = c.ExpectedSSRC
		pt := c.PayloadType
		e.payloadType = &pt
		e.seq = 0
		e.timestamp = 0
		e.active = true
		e.log.Info("rtp start", logging.F("remote", addr.String()), logging.F("payload_type", pt))
	case messages.RepointStream:
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.RemoteIP, c.RemotePort))
		if err != nil {
			e.log.Warn("rtp repoint: invalid remote addr", logging.F("addr", c.RemoteIP))
			return
		}
		e.signaledAddr = addr
		e.signaledIP = addr.IP
		e.observedAddr = nil
		pt := c.PayloadType
		e.payloadType = &pt
	case messages.StopStream:
		e.active = false
		e.signaledAddr = nil
		e.observedAddr = nil
		e.signaledIP = nil
		e.expectedSSRC = nil
		e.payloadType = nil
		e.log.Info("rtp stopped")
	}
}

func (e *Engine) handleRxPacket(pkt rxPacket) {
	if len(pkt.data) < 12 {
		return
	}
	if e.signaledIP != nil && !pkt.addr.IP.Equal(e.signaledIP) {
		metrics.RTPPacketsDropped.Inc()
		return
	}

	seq, ts, ssrc, pt, payload, err := UnpackRTP(pkt.data)
	if err != nil {
		metrics.RTPPacketsDropped.Inc()
		return
	}

	if e.payloadType != nil && pt != *e.payloadType {
		metrics.RTPPacketsDropped.Inc()
		return
	}

	if e.expectedSSRC == nil {
		learned := ssrc
		e.expectedSSRC = &learned
		e.log.Info("rtp learned remote ssrc", logging.F("ssrc", ssrc))
	} else if *e.expectedSSRC != ssrc {
		metrics.RTPPacketsDropped.Inc()
		return
	}

	if e.observedAddr == nil || e.observedAddr.String() != pkt.addr.String() {
		e.observedAddr = pkt.addr
		e.log.Info("rtp peer observed", logging.F("addr", pkt.addr.String()))
	}

	metrics.RTPPacketsReceived.Inc()
	e.mediaInCh <- messages.MediaIn{
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           ssrc,
		PayloadType:    pt,
		Payload:        payload,
	}
}

func (e *Engine) sendOne() {
	dest := e.observedAddr
	if dest == nil {
		dest = e.signaledAddr
	}
	if dest == nil {
		return
	}

	payload := e.buildPayload()

	pt := uint8(0)
	if e.payloadType != nil {
		pt = *e.payloadType
	}

	raw, err := PackRTP(e.seq, e.timestamp, e.localSSRC, pt, payload)
	e.seq++
	e.timestamp += FrameSamples
	if err != nil {
		return
	}
	if _, err := e.conn.WriteTo(raw, dest); err != nil {
		e.log.Warn("rtp send failed", logging.F("err", err.Error()))
		return
	}
	metrics.RTPPacketsSent.Inc()
}

func (e *Engine) buildPayload() []byte {
	select {
	case out := <-e.mediaOutCh:
		return EncodeFrame(out.Samples[:])
	default:
		frame := e.tone.NextFrame()
		return EncodeFrame(frame[:])
	}
}
