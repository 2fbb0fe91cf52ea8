package sipstack

import (
	"net"
	"strconv"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/metrics"
	"github.com/atomphone/firmware/pkg/sipmsg"
	"github.com/google/uuid"
)

// inviteClass is the Initial/Reinvite/InitialWhileBusy classification
// spec §4.3 requires, grounded on original_source/sip_core/src/dialog.rs's
// classify_incoming_invite.
type inviteClass int

const (
	classInitial inviteClass = iota
	classReinvite
	classInitialWhileBusy
)

func (e *Engine) classifyInvite(req *sipmsg.Request) inviteClass {
	callID := req.Headers.Get("Call-ID")
	fromTag := sipmsg.TagFromHeader(req.Headers.Get("From"))
	toTag := sipmsg.TagFromHeader(req.Headers.Get("To"))

	switch e.dialog.State() {
	case calldata.DialogIdle, calldata.DialogTerminated:
		return classInitial
	default:
		if e.dialog.ID.MatchesInDialog(callID, fromTag, toTag) {
			return classReinvite
		}
		return classInitialWhileBusy
	}
}

func (e *Engine) handleInvite(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	if cseqNum, err := sipmsg.CSeqNumber(req.Headers.Get("CSeq")); err == nil {
		key := calldata.TxKey{CallID: req.Headers.Get("Call-ID"), CSeq: cseqNum}
		if tx, ok := e.transactions[key]; ok && tx.LastResponse != nil {
			e.log.Debug("retransmitted invite, resending last response")
			_ = e.sendResponse(tx.LastResponse, from)
			return
		}
	}

	switch e.classifyInvite(req) {
	case classInitial:
		e.handleInitialInvite(req, from, now)
	case classReinvite:
		e.handleReinvite(req, from, now)
	case classInitialWhileBusy:
		resp := e.buildResponseForRequest(req, 486, sipmsg.DefaultReasonPhrase(486), nil, now)
		e.sendAndTrack(req, resp, from, now)
	}
}

func (e *Engine) handleInitialInvite(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	remote, err := parseRemoteSDP(req.Body)
	if err != nil {
		e.log.Warn("invite carries unparseable sdp", logging.F("err", err.Error()))
		resp := e.buildResponseForRequest(req, 488, sipmsg.DefaultReasonPhrase(488), nil, now)
		e.sendAndTrack(req, resp, from, now)
		return
	}
	localSDP, err := buildLocalSDP(e.localIP, e.localRTPPort)
	if err != nil {
		e.log.Warn("failed to build local sdp", logging.F("err", err.Error()))
		resp := e.buildResponseForRequest(req, 500, sipmsg.DefaultReasonPhrase(500), nil, now)
		e.sendAndTrack(req, resp, from, now)
		return
	}

	e.dialog.Reset()
	e.dialog.Role = calldata.RoleUAS
	e.dialog.ID = calldata.DialogID{
		CallID:    req.Headers.Get("Call-ID"),
		RemoteTag: sipmsg.TagFromHeader(req.Headers.Get("From")),
	}
	e.dialog.Call = &calldata.CallContext{
		Invite:        req,
		RemoteSDPRaw:  req.Body,
		LocalSDPRaw:   localSDP,
		RemoteRTPIP:   remote.IP,
		RemoteRTPPort: remote.Port,
		RemotePayload: remote.PayloadType,
		RemoteAddr:    from.String(),
		RingDeadline:  &calldata.Deadline{At: now.Add(e.cfg.RingTimeout).UnixNano()},
	}
	if err := e.dialog.Transition("ring"); err != nil {
		e.log.Warn("dialog ring transition failed", logging.F("err", err.Error()))
		return
	}

	resp := e.buildResponseForRequest(req, 180, sipmsg.DefaultReasonPhrase(180), nil, now)
	e.sendAndTrack(req, resp, from, now)
	e.broadcastDialogState()
}

// handleReinvite preserves the spec §9 open-question decision: answer with
// the current local SDP rather than renegotiating one.
func (e *Engine) handleReinvite(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	remote, err := parseRemoteSDP(req.Body)
	if err != nil {
		e.log.Warn("reinvite carries unparseable sdp", logging.F("err", err.Error()))
		resp := e.buildResponseForRequest(req, 488, sipmsg.DefaultReasonPhrase(488), nil, now)
		e.sendAndTrack(req, resp, from, now)
		return
	}

	var localSDP []byte
	if e.dialog.Call != nil {
		e.dialog.Call.RemoteSDPRaw = req.Body
		e.dialog.Call.RemoteRTPIP = remote.IP
		e.dialog.Call.RemoteRTPPort = remote.Port
		e.dialog.Call.RemotePayload = remote.PayloadType
		e.dialog.Call.RemoteAddr = from.String()
		localSDP = e.dialog.Call.LocalSDPRaw
	}

	if e.dialog.State() == calldata.DialogEstablished {
		_ = e.dialog.Transition("reinvite")
		e.rtpCh <- messages.RepointStream{
			RemoteIP:    remote.IP,
			RemotePort:  remote.Port,
			PayloadType: remote.PayloadType,
		}
	}

	resp := e.buildResponseForRequest(req, 200, sipmsg.DefaultReasonPhrase(200), localSDP, now)
	e.sendAndTrack(req, resp, from, now)
}

func (e *Engine) handleAck(req *sipmsg.Request, now time.Time) {
	cseqNum, err := sipmsg.CSeqNumber(req.Headers.Get("CSeq"))
	if err != nil {
		return
	}
	key := calldata.TxKey{CallID: req.Headers.Get("Call-ID"), CSeq: cseqNum}
	if tx, ok := e.transactions[key]; ok {
		tx.ConfirmACK(now)
	}

	if e.dialog.State() != calldata.DialogRinging || e.dialog.ID.CallID != req.Headers.Get("Call-ID") {
		return
	}
	if err := e.dialog.Transition("establish"); err != nil {
		e.log.Warn("dialog establish failed", logging.F("err", err.Error()))
		return
	}
	if e.dialog.Call != nil {
		e.rtpCh <- messages.StartStream{
			RemoteIP:    e.dialog.Call.RemoteRTPIP,
			RemotePort:  e.dialog.Call.RemoteRTPPort,
			PayloadType: e.dialog.Call.RemotePayload,
		}
	}
	e.broadcastDialogState()
}

func (e *Engine) handleCancel(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	callID := req.Headers.Get("Call-ID")
	fromTag := sipmsg.TagFromHeader(req.Headers.Get("From"))

	if e.dialog.State() != calldata.DialogRinging || e.dialog.Role != calldata.RoleUAS ||
		e.dialog.ID.CallID != callID || e.dialog.ID.RemoteTag != fromTag {
		resp := e.buildResponseForRequest(req, 481, sipmsg.DefaultReasonPhrase(481), nil, now)
		e.sendAndTrack(req, resp, from, now)
		return
	}

	cancelOK := e.buildResponseForRequest(req, 200, sipmsg.DefaultReasonPhrase(200), nil, now)
	e.sendAndTrack(req, cancelOK, from, now)

	if e.dialog.Call != nil {
		invite := e.dialog.Call.Invite
		terminated := e.buildResponseForRequest(invite, 487, sipmsg.DefaultReasonPhrase(487), nil, now)
		e.sendAndTrack(invite, terminated, from, now)
	}

	_ = e.dialog.Transition("terminate")
	e.stopCallAndBroadcastIdle()
}

func (e *Engine) handleBye(req *sipmsg.Request, from *net.UDPAddr, now time.Time) {
	if e.dialog.ID.CallID != req.Headers.Get("Call-ID") {
		resp := e.buildResponseForRequest(req, 481, sipmsg.DefaultReasonPhrase(481), nil, now)
		e.sendAndTrack(req, resp, from, now)
		return
	}
	resp := e.buildResponseForRequest(req, 200, sipmsg.DefaultReasonPhrase(200), nil, now)
	e.sendAndTrack(req, resp, from, now)
	_ = e.dialog.Transition("terminate")
	e.stopCallAndBroadcastIdle()
}

// buildResponseForRequest builds a response against an incoming request,
// grounded on dialog.rs's build_response_for_request: Via/From/Call-ID/
// CSeq are copied verbatim, and a missing To-tag is filled from the
// current dialog's committed local tag (allocating and committing one the
// first time) or, for an unrelated transaction, a one-off tag.
func (e *Engine) buildResponseForRequest(req *sipmsg.Request, status int, reason string, body []byte, now time.Time) *sipmsg.Response {
	resp := sipmsg.ResponseFromRequest(req, status, reason)

	toValue := resp.Headers.Get("To")
	if sipmsg.TagFromHeader(toValue) == "" {
		tag := e.localTagFor(req.Headers.Get("Call-ID"))
		resp.Headers.Set("To", sipmsg.FormatNameAddr(sipmsg.URIFromHeader(toValue), tag))
	}

	if len(body) > 0 {
		resp.Body = body
		resp.Headers.Set("Content-Type", "application/sdp")
		resp.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	} else {
		resp.Headers.Set("Content-Length", "0")
	}
	return resp
}

func (e *Engine) localTagFor(callID string) string {
	if e.dialog.ID.CallID == callID {
		if e.dialog.ID.LocalTag == "" {
			e.dialog.ID.LocalTag = e.dialog.AllocateTag()
		}
		return e.dialog.ID.LocalTag
	}
	return e.dialog.AllocateTag()
}

// sendAndTrack sends resp and records it against the (Call-ID, CSeq)
// transaction, arming retransmission/abandon timers for final responses
// per spec §4.3. Provisional responses are remembered (so a retransmitted
// request gets an immediate resend) without arming timers.
func (e *Engine) sendAndTrack(req *sipmsg.Request, resp *sipmsg.Response, from *net.UDPAddr, now time.Time) {
	if err := e.sendResponse(resp, from); err != nil {
		e.log.Warn("sip response send failed", logging.F("status", resp.StatusCode), logging.F("err", err.Error()))
	}

	cseqNum, err := sipmsg.CSeqNumber(req.Headers.Get("CSeq"))
	if err != nil {
		return
	}
	key := calldata.TxKey{CallID: req.Headers.Get("Call-ID"), CSeq: cseqNum}
	tx, ok := e.transactions[key]
	if !ok {
		tx = calldata.NewServerTransaction(key, from.String())
		e.transactions[key] = tx
	}
	if resp.StatusCode >= 200 {
		tx.ArmFinal(resp, now)
	} else {
		tx.LastResponse = resp
	}
}

func (e *Engine) handleCommand(cmd messages.SipCommand, now time.Time) {
	switch c := cmd.(type) {
	case messages.ShortPress:
		e.handleShortPress(now)
	case messages.DoubleTap:
		e.handleDoubleTap(now)
	case messages.ButtonEdge:
		e.handlePTT(c, now)
	}
}

// handleShortPress answers a ringing UAS dialog, per spec §4.3 "Answering".
func (e *Engine) handleShortPress(now time.Time) {
	if e.dialog.State() != calldata.DialogRinging || e.dialog.Role != calldata.RoleUAS || e.dialog.Call == nil {
		return
	}
	call := e.dialog.Call
	addr, err := net.ResolveUDPAddr("udp", call.RemoteAddr)
	if err != nil {
		e.log.Warn("answer: invalid remote addr", logging.F("addr", call.RemoteAddr))
		return
	}
	resp := e.buildResponseForRequest(call.Invite, 200, sipmsg.DefaultReasonPhrase(200), call.LocalSDPRaw, now)
	resp.Headers.Set("Contact", sipmsg.FormatNameAddr(e.contactURI, ""))
	e.sendAndTrack(call.Invite, resp, addr, now)
	call.RingDeadline = nil
}

// handleDoubleTap implements spec §4.3 "Hangup", with the §9 open-question
// decision (DESIGN.md) to emit a best-effort BYE before tearing down.
func (e *Engine) handleDoubleTap(now time.Time) {
	if e.dialog.State() != calldata.DialogEstablished || e.dialog.Call == nil {
		return
	}
	e.sendBye(now)
	_ = e.dialog.Transition("terminate")
	e.stopCallAndBroadcastIdle()
}

func (e *Engine) sendBye(now time.Time) {
	call := e.dialog.Call
	addr, err := net.ResolveUDPAddr("udp", call.RemoteAddr)
	if err != nil {
		e.log.Warn("bye: invalid remote addr", logging.F("addr", call.RemoteAddr))
		return
	}
	// The stored INVITE names the peer in From when we are UAS, in To when UAC.
	remoteHeader := call.Invite.Headers.Get("From")
	if e.dialog.Role == calldata.RoleUAC {
		remoteHeader = call.Invite.Headers.Get("To")
	}
	remoteURI := sipmsg.URIFromHeader(remoteHeader)

	req := sipmsg.NewRequestMessage("BYE", remoteURI)
	req.Headers.Add("Via", sipmsg.FormatVia(e.localIP, e.localSIPPort, e.reg.NextBranch()))
	req.Headers.Set("Max-Forwards", "70")
	req.Headers.Set("From", sipmsg.FormatNameAddr(e.contactURI, e.dialog.ID.LocalTag))
	req.Headers.Set("To", sipmsg.FormatNameAddr(remoteURI, e.dialog.ID.RemoteTag))
	req.Headers.Set("Call-ID", e.dialog.ID.CallID)
	req.Headers.Set("CSeq", sipmsg.FormatCSeq(e.dialog.NextCSeq(), "BYE"))
	req.Headers.Set("Content-Length", "0")

	if err := e.sendRequest(req, addr); err != nil {
		e.log.Warn("bye send failed", logging.F("err", err.Error()))
	}
}

// handlePTT implements spec §4.3 "PTT mode": every button edge while a
// CallContext exists translates 1:1 into AudioCommand::SetMode. A press
// edge with no CallContext and an Idle/Terminated dialog instead places an
// outbound call to the configured sip_target, per original_source's
// PttPressed handling (dropped from the distilled spec's PTT description
// but not excluded by any Non-goal).
func (e *Engine) handlePTT(edge messages.ButtonEdge, now time.Time) {
	if e.dialog.Call == nil {
		if edge.State && (e.dialog.State() == calldata.DialogIdle || e.dialog.State() == calldata.DialogTerminated) {
			e.sendOutboundInvite(now)
		}
		return
	}
	mode := messages.ModeListen
	if edge.State {
		mode = messages.ModeTalk
	}
	e.audioCh <- messages.SetMode{Mode: mode}
}

// sendOutboundInvite originates a UAC call to e.targetURI, grounded on
// original_source/app/src/tasks/sip.rs's PttPressed handler: build a local
// SDP offer, allocate a fresh Call-ID and From-tag, and send INVITE. No-op
// if sip_target did not resolve to a usable address at construction.
func (e *Engine) sendOutboundInvite(now time.Time) {
	if e.targetAddr == nil {
		return
	}
	localSDP, err := buildLocalSDP(e.localIP, e.localRTPPort)
	if err != nil {
		e.log.Warn("failed to build local sdp for outbound invite", logging.F("err", err.Error()))
		return
	}

	e.dialog.Reset()
	fromTag := e.dialog.AllocateTag()
	callID := uuid.New().String()

	req := sipmsg.NewRequestMessage("INVITE", e.targetURI)
	req.Headers.Add("Via", sipmsg.FormatVia(e.localIP, e.localSIPPort, e.reg.NextBranch()))
	req.Headers.Set("Max-Forwards", "70")
	req.Headers.Set("From", sipmsg.FormatNameAddr(e.contactURI, fromTag))
	req.Headers.Set("To", sipmsg.FormatNameAddr(e.targetURI, ""))
	req.Headers.Set("Call-ID", callID)
	req.Headers.Set("CSeq", sipmsg.FormatCSeq(1, "INVITE"))
	req.Headers.Set("Contact", sipmsg.FormatNameAddr(e.contactURI, ""))
	req.Headers.Set("Content-Type", "application/sdp")
	req.Headers.Set("Content-Length", strconv.Itoa(len(localSDP)))
	req.Body = localSDP

	e.dialog.ID = calldata.DialogID{CallID: callID, LocalTag: fromTag}
	e.dialog.Call = &calldata.CallContext{
		Invite:      req,
		LocalSDPRaw: localSDP,
		RemoteAddr:  e.targetAddr.String(),
	}
	if err := e.dialog.Transition("invite"); err != nil {
		e.log.Warn("dialog invite transition failed", logging.F("err", err.Error()))
		e.dialog.Call = nil
		return
	}
	if err := e.sendRequest(req, e.targetAddr); err != nil {
		e.log.Warn("outbound invite send failed", logging.F("err", err.Error()))
		return
	}
	e.broadcastDialogState()
}

// handleInviteResponse processes a response to our own outbound INVITE:
// provisional responses are ignored, a 200 OK is ACKed and starts the RTP
// stream, and any other final response terminates the dialog back to Idle.
func (e *Engine) handleInviteResponse(resp *sipmsg.Response, now time.Time) {
	if e.dialog.Role != calldata.RoleUAC || e.dialog.Call == nil {
		return
	}
	if resp.Headers.Get("Call-ID") != e.dialog.ID.CallID {
		return
	}

	if resp.StatusCode < 200 {
		return
	}

	if resp.StatusCode != 200 {
		e.log.Info("outbound invite failed", logging.F("status", resp.StatusCode))
		_ = e.dialog.Transition("terminate")
		e.stopCallAndBroadcastIdle()
		return
	}

	remote, err := parseRemoteSDP(resp.Body)
	if err != nil {
		e.log.Warn("invite 200 ok carries unparseable sdp", logging.F("err", err.Error()))
		_ = e.dialog.Transition("terminate")
		e.stopCallAndBroadcastIdle()
		return
	}

	e.dialog.ID.RemoteTag = sipmsg.TagFromHeader(resp.Headers.Get("To"))
	call := e.dialog.Call
	call.RemoteSDPRaw = resp.Body
	call.RemoteRTPIP = remote.IP
	call.RemoteRTPPort = remote.Port
	call.RemotePayload = remote.PayloadType

	ack := sipmsg.NewRequestMessage("ACK", e.targetURI)
	ack.Headers.Add("Via", sipmsg.FormatVia(e.localIP, e.localSIPPort, e.reg.NextBranch()))
	ack.Headers.Set("Max-Forwards", "70")
	ack.Headers.Set("From", sipmsg.FormatNameAddr(e.contactURI, e.dialog.ID.LocalTag))
	ack.Headers.Set("To", sipmsg.FormatNameAddr(e.targetURI, e.dialog.ID.RemoteTag))
	ack.Headers.Set("Call-ID", e.dialog.ID.CallID)
	ack.Headers.Set("CSeq", sipmsg.FormatCSeq(1, "ACK"))
	ack.Headers.Set("Content-Length", "0")
	if err := e.sendRequest(ack, e.targetAddr); err != nil {
		e.log.Warn("ack send failed", logging.F("err", err.Error()))
	}

	if err := e.dialog.Transition("establish"); err != nil {
		e.log.Warn("dialog establish (uac) failed", logging.F("err", err.Error()))
		return
	}
	e.rtpCh <- messages.StartStream{
		RemoteIP:    remote.IP,
		RemotePort:  remote.Port,
		PayloadType: remote.PayloadType,
	}
	e.broadcastDialogState()
}

// checkRingTimeout implements spec §4.3 "Ring timeout".
func (e *Engine) checkRingTimeout(now time.Time) {
	if e.dialog.State() != calldata.DialogRinging || e.dialog.Role != calldata.RoleUAS || e.dialog.Call == nil {
		return
	}
	deadline := e.dialog.Call.RingDeadline
	if deadline == nil || now.UnixNano() < deadline.At {
		return
	}

	call := e.dialog.Call
	addr, err := net.ResolveUDPAddr("udp", call.RemoteAddr)
	if err == nil {
		resp := e.buildResponseForRequest(call.Invite, 480, sipmsg.DefaultReasonPhrase(480), nil, now)
		e.sendAndTrack(call.Invite, resp, addr, now)
	}

	_ = e.dialog.Transition("terminate")
	e.stopCallAndBroadcastIdle()
}

// advanceTransactionTimers implements spec §4.3 "Server transaction layer":
// poll_timers is called each loop iteration, yielding pending
// retransmissions with their destination, and cleaning up finished
// transactions.
func (e *Engine) advanceTransactionTimers(now time.Time) {
	for key, tx := range e.transactions {
		if resp, fire := tx.PollRetransmit(now); fire {
			addr, err := net.ResolveUDPAddr("udp", tx.RemoteAddr)
			if err == nil {
				if err := e.sendResponse(resp, addr); err != nil {
					e.log.Warn("retransmit send failed", logging.F("err", err.Error()))
				} else {
					metrics.Retransmissions.Inc()
				}
			}
		}
		if tx.Done(now) {
			delete(e.transactions, key)
		}
	}
}

// stopCallAndBroadcastIdle finishes a terminated dialog's teardown: it
// folds the Terminated -> Idle transition in here (spec §4.3 "Hangup"/"Ring
// timeout" both broadcast Idle, not Terminated) so every caller that already
// fired "terminate" ends up broadcasting the dialog's true resting state.
func (e *Engine) stopCallAndBroadcastIdle() {
	_ = e.dialog.Transition("idle")
	e.dialog.Call = nil
	e.rtpCh <- messages.StopStream{}
	e.broadcastDialogState()
}

func (e *Engine) broadcastDialogState() {
	msg := messages.DialogStateChanged{State: e.dialog.State()}
	metrics.DialogState.Set(float64(e.dialog.State()))
	e.uiCh <- msg
	e.audioCh <- msg
}
