package sipstack

import (
	"strconv"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/metrics"
	"github.com/atomphone/firmware/pkg/sipmsg"
)

const (
	registerExpiresSeconds = 3600
	minRefreshInterval     = 5 * time.Second
	challengeRetryInterval = 1 * time.Second
	failureRetryInterval   = 30 * time.Second
)

// maybeRegister implements spec §4.3's registration refresh: a REGISTER is
// sent only when the refresh timer has elapsed and the registration is not
// already Registering. A Registering state with an elapsed timer is treated
// as a timeout and resets to Unregistered before retrying.
func (e *Engine) maybeRegister(now time.Time) {
	if now.Before(e.nextRegister) {
		return
	}
	if e.reg.State() == calldata.RegRegistering {
		e.log.Warn("registration timed out, retrying")
		_ = e.reg.Transition("timeout")
	}

	expires := registerExpiresSeconds
	if e.reg.State() == calldata.RegRegistered {
		expires = e.reg.LastExpires
	}

	req := e.buildRegister(expires)
	if err := e.sendRequest(req, e.registrarAddr); err != nil {
		e.log.Warn("register send failed", logging.F("err", err.Error()))
		e.nextRegister = now.Add(failureRetryInterval)
		return
	}
	_ = e.reg.Transition("register")
	e.nextRegister = now.Add(failureRetryInterval) // overwritten by handleRegisterResponse on a final reply
}

func (e *Engine) buildRegister(expires int) *sipmsg.Request {
	req := sipmsg.NewRequestMessage("REGISTER", e.registrarURI)
	req.Headers.Add("Via", sipmsg.FormatVia(e.localIP, e.localSIPPort, e.reg.NextBranch()))
	req.Headers.Set("Max-Forwards", "70")
	req.Headers.Set("From", sipmsg.FormatNameAddr(e.contactURI, e.reg.FromTag))
	req.Headers.Set("To", sipmsg.FormatNameAddr(e.contactURI, e.reg.ToTag))
	req.Headers.Set("Call-ID", e.reg.CallID)
	req.Headers.Set("CSeq", sipmsg.FormatCSeq(e.reg.NextCSeq(), "REGISTER"))
	req.Headers.Set("Contact", sipmsg.FormatNameAddr(e.contactURI, ""))
	req.Headers.Set("Expires", strconv.Itoa(expires))
	if e.reg.Challenge != nil {
		authHeader, err := authorizationHeader(e.reg.Challenge, e.cfg.SipUsername, e.cfg.SipPassword, "REGISTER", e.registrarURI)
		if err != nil {
			e.log.Warn("digest computation failed", logging.F("err", err.Error()))
		} else {
			req.Headers.Set("Authorization", authHeader)
		}
	}
	req.Headers.Set("Content-Length", "0")
	return req
}

// handleRegisterResponse applies spec §4.3's final-response table to a
// REGISTER reply.
func (e *Engine) handleRegisterResponse(resp *sipmsg.Response, now time.Time) {
	switch {
	case resp.StatusCode == 200:
		expires := registerExpiresSeconds
		if v := resp.Headers.Get("Expires"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				expires = n
			}
		}
		e.reg.LastExpires = expires
		_ = e.reg.Transition("registered")
		refresh := time.Duration(float64(expires)*0.8) * time.Second
		if refresh < minRefreshInterval {
			refresh = minRefreshInterval
		}
		e.nextRegister = now.Add(refresh)
		e.broadcastRegistrationState()

	case resp.StatusCode == 401 || resp.StatusCode == 407:
		header := "WWW-Authenticate"
		if resp.StatusCode == 407 {
			header = "Proxy-Authenticate"
		}
		if chal, err := parseChallenge(resp.Headers.Get(header)); err == nil {
			e.reg.Challenge = chal
		} else {
			e.log.Warn("failed to parse auth challenge", logging.F("err", err.Error()))
		}
		_ = e.reg.Transition("challenge")
		e.nextRegister = now.Add(challengeRetryInterval)
		e.broadcastRegistrationState()

	default:
		_ = e.reg.Transition("fail")
		e.nextRegister = now.Add(failureRetryInterval)
		e.broadcastRegistrationState()
	}
}

func (e *Engine) broadcastRegistrationState() {
	msg := messages.RegistrationStateChanged{State: e.reg.State()}
	metrics.RegistrationState.Set(float64(e.reg.State()))
	e.uiCh <- msg
	e.audioCh <- msg
}
