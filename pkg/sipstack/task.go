// Package sipstack is the SIP task: it owns the SIP UDP socket exclusively,
// drives registration refresh and digest auth, classifies and answers
// incoming INVITEs, runs the INVITE server-transaction retransmission
// timers, and translates button gestures and dialog transitions into
// commands for the Audio and RTP tasks, per spec §4.3. Grounded on
// original_source/app/src/tasks/sip.rs and sip_core/src/{dialog,
// registration}.rs, reworked into Go's channel-select idiom.
package sipstack

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/config"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/sipmsg"
)

const rxBufSize = 2048

// tick is the loop's sleep-at-the-end period; spec §4.3 names ~10ms.
const tick = 10 * time.Millisecond

// Engine is the SIP task.
type Engine struct {
	conn net.PacketConn
	log  logging.Logger
	cfg  *config.Config

	cmdCh   <-chan messages.SipCommand
	audioCh chan<- messages.AudioCommand
	rtpCh   chan<- messages.RtpCommand
	uiCh    chan<- messages.UiCommand

	reg    *calldata.Registration
	dialog *calldata.Dialog

	registrarURI  string
	registrarAddr *net.UDPAddr
	targetURI     string
	targetAddr    *net.UDPAddr
	contactURI    string
	localIP       string
	localSIPPort  uint16
	localRTPPort  uint16

	nextRegister time.Time

	transactions map[calldata.TxKey]*calldata.ServerTransaction
}

// NewEngine constructs a SIP task engine bound to an already-opened UDP
// socket, with the RTP task's own bound local port (needed to advertise a
// local SDP offer) passed in alongside it, per spec §3's "each task
// exclusively owns its external resource" — the SIP task never touches the
// RTP socket itself.
func NewEngine(
	conn net.PacketConn,
	localRTPPort uint16,
	cfg *config.Config,
	cmdCh <-chan messages.SipCommand,
	audioCh chan<- messages.AudioCommand,
	rtpCh chan<- messages.RtpCommand,
	uiCh chan<- messages.UiCommand,
) (*Engine, error) {
	registrar, err := sipmsg.ParseSipURI(cfg.SipRegistrar)
	if err != nil {
		return nil, fmt.Errorf("sipstack: parse sip_registrar: %w", err)
	}
	registrarAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", registrar.Host, registrar.Port))
	if err != nil {
		return nil, fmt.Errorf("sipstack: resolve sip_registrar: %w", err)
	}

	localIP, localPort, err := localAddrParts(conn)
	if err != nil {
		return nil, fmt.Errorf("sipstack: read local address: %w", err)
	}

	contactURI, err := buildContactURI(cfg.SipContact, localIP, localPort)
	if err != nil {
		return nil, fmt.Errorf("sipstack: build contact URI: %w", err)
	}

	log := logging.New("sip")

	target, err := sipmsg.ParseSipURI(cfg.SipTarget)
	targetURI := cfg.SipTarget
	var targetAddr *net.UDPAddr
	if err == nil {
		targetURI = target.String()
		if addr, resolveErr := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", target.Host, target.Port)); resolveErr == nil {
			targetAddr = addr
		} else {
			log.Warn("sip_target did not resolve, outbound calling disabled", logging.F("err", resolveErr.Error()))
		}
	} else if cfg.SipTarget != "" {
		log.Warn("sip_target is not a valid sip uri, outbound calling disabled", logging.F("err", err.Error()))
	}

	return &Engine{
		conn:          conn,
		log:           log,
		cfg:           cfg,
		cmdCh:         cmdCh,
		audioCh:       audioCh,
		rtpCh:         rtpCh,
		uiCh:          uiCh,
		reg:           calldata.NewRegistration(),
		dialog:        calldata.NewDialog(),
		registrarURI:  registrar.String(),
		registrarAddr: registrarAddr,
		targetURI:     targetURI,
		targetAddr:    targetAddr,
		contactURI:    contactURI,
		localIP:       localIP,
		localSIPPort:  localPort,
		localRTPPort:  localRTPPort,
		transactions:  make(map[calldata.TxKey]*calldata.ServerTransaction),
	}, nil
}

func localAddrParts(conn net.PacketConn) (string, uint16, error) {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", 0, fmt.Errorf("sipstack: socket local address is not a UDP address")
	}
	ip := addr.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.ParseIP("127.0.0.1")
	}
	return ip.String(), uint16(addr.Port), nil
}

type rxDatagram struct {
	addr *net.UDPAddr
	data []byte
}

// Run drives the task loop until stopCh is closed. now() is read fresh on
// every tick and every event; handler methods take it as a parameter so
// tests can call them directly without driving the ticker.
func (e *Engine) Run(stopCh <-chan struct{}) {
	e.log.Info("sip task started", logging.F("contact", e.contactURI))
	e.nextRegister = time.Now()

	rxCh := make(chan rxDatagram, 8)
	go e.readLoop(rxCh)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			e.log.Info("sip task stopping")
			return
		case dgram := <-rxCh:
			e.handleDatagram(dgram)
		case cmd := <-e.cmdCh:
			e.handleCommand(cmd, time.Now())
		case <-ticker.C:
			now := time.Now()
			e.maybeRegister(now)
			e.checkRingTimeout(now)
			e.advanceTransactionTimers(now)
		}
	}
}

func (e *Engine) readLoop(out chan<- rxDatagram) {
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
		out <- rxDatagram{addr: udpAddr, data: cp}
	}
}

// sendRequest serializes and writes a request to dest.
func (e *Engine) sendRequest(req *sipmsg.Request, dest *net.UDPAddr) error {
	_, err := e.conn.WriteTo(req.Render(), dest)
	return err
}

// sendResponse serializes and writes a response to dest.
func (e *Engine) sendResponse(resp *sipmsg.Response, dest *net.UDPAddr) error {
	_, err := e.conn.WriteTo(resp.Render(), dest)
	return err
}

func (e *Engine) handleDatagram(dgram rxDatagram) {
	parsed, err := sipmsg.ParseDatagram(dgram.data)
	if err != nil {
		e.log.Warn("sip parse failed", logging.F("from", dgram.addr.String()), logging.F("err", err.Error()))
		return
	}
	now := time.Now()
	if parsed.Response != nil {
		e.handleIncomingResponse(parsed.Response, now)
		return
	}
	e.handleIncomingRequest(parsed.Request, dgram.addr, now)
}

func (e *Engine) handleIncomingResponse(resp *sipmsg.Response, now time.Time) {
	cseq := resp.Headers.Get("CSeq")
	switch {
	case strings.Contains(cseq, "REGISTER"):
		e.handleRegisterResponse(resp, now)
	case strings.Contains(cseq, "INVITE"):
		e.handleInviteResponse(resp, now)
	}
}

func (e *Engine) handleIncomingRequest(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	switch req.Method {
	case "INVITE":
		e.handleInvite(req, from, now)
	case "ACK":
		e.handleAck(req, now)
	case "CANCEL":
		e.handleCancel(req, from, now)
	case "BYE":
		e.handleBye(req, from, now)
	case "OPTIONS":
		e.handleOptions(req, from, now)
	default:
		e.log.Debug("sip request ignored", logging.F("method", req.Method))
	}
}

func (e *Engine) handleOptions(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	resp := e.buildResponseForRequest(req, 200, sipmsg.DefaultReasonPhrase(200), nil, now)
	resp.Headers.Set("Allow", "INVITE, ACK, BYE, CANCEL, OPTIONS")
	resp.Headers.Set("Accept", "application/sdp")
	resp.Headers.Set("Content-Length", "0")
	if err := e.sendResponse(resp, from); err != nil {
		e.log.Warn("options response send failed", logging.F("err", err.Error()))
	}
}
