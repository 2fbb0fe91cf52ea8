package sipmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderParseRoundTrip(t *testing.T) {
	req := NewRequestMessage("INVITE", "sip:echo@192.0.2.5:5060")
	req.Headers.Add("Via", FormatVia("192.0.2.9", 5060, "z9hG4bK123"))
	req.Headers.Set("From", FormatNameAddr("sip:caller@192.0.2.9:5060", "abc"))
	req.Headers.Set("To", FormatNameAddr("sip:echo@192.0.2.5:5060", ""))
	req.Headers.Set("Call-ID", "call-1@192.0.2.9")
	req.Headers.Set("CSeq", FormatCSeq(1, "INVITE"))
	req.Body = []byte("v=0\r\n")

	parsed, err := ParseDatagram(req.Render())
	require.NoError(t, err)
	require.NotNil(t, parsed.Request)
	require.Nil(t, parsed.Response)

	got := parsed.Request
	require.Equal(t, "INVITE", got.Method)
	require.Equal(t, "sip:echo@192.0.2.5:5060", got.RequestURI)
	require.Equal(t, "call-1@192.0.2.9", got.Headers.Get("Call-ID"))
	require.Equal(t, "1 INVITE", got.Headers.Get("CSeq"))
	require.Equal(t, "abc", TagFromHeader(got.Headers.Get("From")))
	require.Equal(t, []byte("v=0\r\n"), got.Body)
}

func TestParseDatagramResponse(t *testing.T) {
	resp := NewResponseMessage(180, "Ringing")
	resp.Headers.Set("Call-ID", "call-2")
	resp.Headers.Set("CSeq", "1 INVITE")

	parsed, err := ParseDatagram(resp.Render())
	require.NoError(t, err)
	require.NotNil(t, parsed.Response)
	require.Nil(t, parsed.Request)
	require.Equal(t, 180, parsed.Response.StatusCode)
	require.Equal(t, "Ringing", parsed.Response.ReasonPhrase)
}

func TestHeadersCaseInsensitiveAndCompactForms(t *testing.T) {
	h := NewHeaders()
	h.Set("call-id", "abc")
	require.Equal(t, "abc", h.Get("Call-ID"))
	require.Equal(t, "abc", h.Get("i"))

	h.Add("Via", "one")
	h.Add("via", "two")
	require.Equal(t, []string{"one", "two"}, h.GetAll("V"))

	h.Set("Content-Length", "0")
	require.Equal(t, "0", h.Get("l"))
}

func TestResponseFromRequestCopiesDialogHeaders(t *testing.T) {
	req := NewRequestMessage("INVITE", "sip:echo@192.0.2.5:5060")
	req.Headers.Add("Via", FormatVia("192.0.2.9", 5060, "z9hG4bK123"))
	req.Headers.Set("From", FormatNameAddr("sip:caller@192.0.2.9:5060", "abc"))
	req.Headers.Set("To", FormatNameAddr("sip:echo@192.0.2.5:5060", ""))
	req.Headers.Set("Call-ID", "call-1")
	req.Headers.Set("CSeq", "1 INVITE")

	resp := ResponseFromRequest(req, 180, DefaultReasonPhrase(180))
	require.Equal(t, "call-1", resp.Headers.Get("Call-ID"))
	require.Equal(t, "1 INVITE", resp.Headers.Get("CSeq"))
	require.Equal(t, req.Headers.Get("Via"), resp.Headers.Get("Via"))
	require.Empty(t, TagFromHeader(resp.Headers.Get("To")))
}

func TestParseDatagramRejectsGarbage(t *testing.T) {
	_, err := ParseDatagram([]byte("not sdp"))
	require.Error(t, err)
}

func TestParseSipURIVariants(t *testing.T) {
	u, err := ParseSipURI("sip:alice@registrar.example.com:5060")
	require.NoError(t, err)
	require.Equal(t, "alice", u.User)
	require.Equal(t, "registrar.example.com", u.Host)
	require.Equal(t, uint16(5060), u.Port)

	u2, err := ParseSipURI("<sip:registrar.example.com>")
	require.NoError(t, err)
	require.Equal(t, "", u2.User)
	require.Equal(t, uint16(5060), u2.Port)
}
