package sipmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// URI is a minimal sip: URI: scheme, optional user, host, and port. The
// intercom never originates or parses sips:/tel: URIs or URI
// parameters/headers, so those are deliberately not modeled.
type URI struct {
	User string
	Host string
	Port uint16
}

// ParseSipURI parses "sip:user@host:port" or "sip:host:port", tolerating a
// leading display name and "<...>" wrapping as produced by From/To/Contact
// header values.
func ParseSipURI(raw string) (*URI, error) {
	raw = URIFromHeader(raw)
	raw = strings.TrimPrefix(raw, "sip:")
	raw = strings.TrimPrefix(raw, "sips:")
	if semi := strings.IndexByte(raw, ';'); semi != -1 {
		raw = raw[:semi]
	}

	u := &URI{}
	if at := strings.LastIndexByte(raw, '@'); at != -1 {
		u.User = raw[:at]
		raw = raw[at+1:]
	}
	if raw == "" {
		return nil, fmt.Errorf("sipmsg: empty host in URI")
	}
	if colon := strings.LastIndexByte(raw, ':'); colon != -1 {
		u.Host = raw[:colon]
		port, err := strconv.ParseUint(raw[colon+1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("sipmsg: invalid port in URI %q: %w", raw, err)
		}
		u.Port = uint16(port)
	} else {
		u.Host = raw
		u.Port = 5060
	}
	return u, nil
}

// String renders the URI in "sip:user@host:port" form.
func (u *URI) String() string {
	if u.User == "" {
		return fmt.Sprintf("sip:%s:%d", u.Host, u.Port)
	}
	return fmt.Sprintf("sip:%s@%s:%d", u.User, u.Host, u.Port)
}
