// Package sipmsg is a minimal hand-rolled SIP text message model: headers,
// requests, responses, and their wire rendering. The SIP task owns its one
// raw UDP socket directly (spec §5), so message construction and
// serialization happen here instead of inside a transport-owning client
// library.
package sipmsg

import (
	"fmt"
	"strings"
)

// Headers holds SIP headers with case-insensitive names and preserves
// insertion order for rendering, mirroring RFC 3261's compact-form
// equivalences (e.g. "i" for Call-ID).
type Headers struct {
	values map[string][]string
	order  []string
}

func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func normalizeHeaderName(name string) string {
	switch strings.ToLower(name) {
	case "i":
		return "call-id"
	case "m":
		return "contact"
	case "f":
		return "from"
	case "t":
		return "to"
	case "v":
		return "via"
	case "c":
		return "content-type"
	case "l":
		return "content-length"
	default:
		return strings.ToLower(name)
	}
}

// Get returns the first value of a header, or "".
func (h *Headers) Get(name string) string {
	vs := h.GetAll(name)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// GetAll returns every value of a header in the order they appeared.
func (h *Headers) GetAll(name string) []string {
	return h.values[normalizeHeaderName(name)]
}

// Set replaces all existing values of a header with a single value.
func (h *Headers) Set(name, value string) {
	norm := normalizeHeaderName(name)
	for i, n := range h.order {
		if normalizeHeaderName(n) == norm {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.values[norm] = []string{value}
	h.order = append(h.order, name)
}

// Add appends a header value without disturbing existing values.
func (h *Headers) Add(name, value string) {
	norm := normalizeHeaderName(name)
	if _, ok := h.values[norm]; !ok {
		h.order = append(h.order, name)
	}
	h.values[norm] = append(h.values[norm], value)
}

func (h *Headers) Remove(name string) {
	norm := normalizeHeaderName(name)
	delete(h.values, norm)
	kept := h.order[:0:0]
	for _, n := range h.order {
		if normalizeHeaderName(n) != norm {
			kept = append(kept, n)
		}
	}
	h.order = kept
}

func (h *Headers) render(sb *strings.Builder) {
	for _, name := range h.order {
		for _, v := range h.values[normalizeHeaderName(name)] {
			fmt.Fprintf(sb, "%s: %s\r\n", name, v)
		}
	}
}

// Request is a SIP request: a method, a Request-URI, headers, and a body.
type Request struct {
	Method     string
	RequestURI string
	Headers    *Headers
	Body       []byte
}

func NewRequestMessage(method, requestURI string) *Request {
	return &Request{Method: method, RequestURI: requestURI, Headers: NewHeaders()}
}

// Render serializes the request to wire bytes per RFC 3261 §7.1.
func (r *Request) Render() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s SIP/2.0\r\n", r.Method, r.RequestURI)
	r.Headers.render(&sb)
	sb.WriteString("\r\n")
	if len(r.Body) > 0 {
		sb.Write(r.Body)
	}
	return []byte(sb.String())
}

// Response is a SIP status-line response: a status code, reason phrase,
// headers, and a body.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Headers      *Headers
	Body         []byte
}

func NewResponseMessage(statusCode int, reasonPhrase string) *Response {
	return &Response{StatusCode: statusCode, ReasonPhrase: reasonPhrase, Headers: NewHeaders()}
}

// Render serializes the response to wire bytes per RFC 3261 §7.2.
func (r *Response) Render() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SIP/2.0 %d %s\r\n", r.StatusCode, r.ReasonPhrase)
	r.Headers.render(&sb)
	sb.WriteString("\r\n")
	if len(r.Body) > 0 {
		sb.Write(r.Body)
	}
	return []byte(sb.String())
}

// ResponseFromRequest seeds a response's Via, From, To, Call-ID and CSeq
// from the request it answers, per RFC 3261 §8.2.6.2. Callers add a To-tag
// and any additional headers afterward.
func ResponseFromRequest(req *Request, statusCode int, reasonPhrase string) *Response {
	h := NewHeaders()
	for _, via := range req.Headers.GetAll("Via") {
		h.Add("Via", via)
	}
	h.Set("From", req.Headers.Get("From"))
	h.Set("To", req.Headers.Get("To"))
	h.Set("Call-ID", req.Headers.Get("Call-ID"))
	h.Set("CSeq", req.Headers.Get("CSeq"))
	return &Response{StatusCode: statusCode, ReasonPhrase: reasonPhrase, Headers: h}
}

func DefaultReasonPhrase(code int) string {
	switch code {
	case 100:
		return "Trying"
	case 180:
		return "Ringing"
	case 183:
		return "Session Progress"
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 407:
		return "Proxy Authentication Required"
	case 408:
		return "Request Timeout"
	case 480:
		return "Temporarily Unavailable"
	case 481:
		return "Call/Transaction Does Not Exist"
	case 486:
		return "Busy Here"
	case 487:
		return "Request Terminated"
	case 488:
		return "Not Acceptable Here"
	case 500:
		return "Server Internal Error"
	case 603:
		return "Decline"
	default:
		return "Unknown"
	}
}
