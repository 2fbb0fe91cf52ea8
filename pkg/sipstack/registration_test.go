package sipstack

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/sipmsg"
	"github.com/stretchr/testify/require"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TestRegistrationChallengeProducesExpectedDigest implements spec §8
// scenario 1: a REGISTER challenged with a 401 must be retried within 1s
// carrying an Authorization header whose response field equals
// MD5(MD5("u:x:p") : "n" : MD5("REGISTER:sip:registrar")) in lowercase hex.
func TestRegistrationChallengeProducesExpectedDigest(t *testing.T) {
	h := newTestHarness(t)
	h.e.cfg.SipUsername = "u"
	h.e.cfg.SipPassword = "p"
	h.e.registrarURI = "sip:registrar"

	t0 := time.Now()
	h.e.maybeRegister(t0)
	require.Equal(t, calldata.RegRegistering, h.e.reg.State())

	challenge := sipmsg.NewResponseMessage(401, "Unauthorized")
	challenge.Headers.Set("Call-ID", h.e.reg.CallID)
	challenge.Headers.Set("CSeq", "1 REGISTER")
	challenge.Headers.Set("WWW-Authenticate", `Digest realm="x", nonce="n", algorithm=MD5`)
	h.e.handleIncomingResponse(challenge, t0)

	require.NotNil(t, h.e.reg.Challenge)
	require.True(t, h.e.nextRegister.Sub(t0) <= time.Second)

	h.e.maybeRegister(h.e.nextRegister)

	expected := md5Hex(fmt.Sprintf("%s:%s:%s", md5Hex("u:x:p"), "n", md5Hex("REGISTER:sip:registrar")))

	authHeader, err := authorizationHeader(h.e.reg.Challenge, "u", "p", "REGISTER", "sip:registrar")
	require.NoError(t, err)
	require.Contains(t, authHeader, expected)
}

// TestRegistrationRefreshScheduling implements spec §8's "Registration
// refresh" invariant: the next REGISTER is scheduled at ~0.8*Expires
// seconds (minimum 5s), reusing the same Call-ID/From/To tags, CSeq
// incremented by one each send.
func TestRegistrationRefreshScheduling(t *testing.T) {
	h := newTestHarness(t)
	t0 := time.Now()
	h.e.maybeRegister(t0)
	firstCSeq := h.e.reg.CSeq

	ok := sipmsg.NewResponseMessage(200, "OK")
	ok.Headers.Set("Call-ID", h.e.reg.CallID)
	ok.Headers.Set("CSeq", "1 REGISTER")
	ok.Headers.Set("Expires", "30")
	h.e.handleIncomingResponse(ok, t0)

	require.Equal(t, calldata.RegRegistered, h.e.reg.State())
	delta := h.e.nextRegister.Sub(t0)
	require.InDelta(t, 24*time.Second, delta, float64(2*time.Second))

	callID := h.e.reg.CallID
	fromTag := h.e.reg.FromTag
	h.e.maybeRegister(h.e.nextRegister)
	require.Equal(t, callID, h.e.reg.CallID)
	require.Equal(t, fromTag, h.e.reg.FromTag)
	require.Equal(t, firstCSeq+1, h.e.reg.CSeq)
}
