package sipstack

import (
	"fmt"

	"github.com/atomphone/firmware/pkg/sipmsg"
)

// buildContactURI recombines the configured sip_contact template's user
// part with the socket's actual bound local IP/port, per SPEC_FULL.md's
// contact-URI templating supplement (grounded on the original's
// build_contact_uri): the template may name a user ("sip:echo@0.0.0.0:0")
// but never a meaningful host/port, since those are only known once the
// UDP socket is bound.
func buildContactURI(template, localIP string, localPort uint16) (string, error) {
	parsed, err := sipmsg.ParseSipURI(template)
	if err != nil {
		return "", fmt.Errorf("sipstack: parse sip_contact template: %w", err)
	}
	uri := &sipmsg.URI{User: parsed.User, Host: localIP, Port: localPort}
	return uri.String(), nil
}
