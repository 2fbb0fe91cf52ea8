package sipmsg

import "fmt"

// FormatVia renders a Via header value for UDP with an explicit branch,
// requesting rport per RFC 3581 so the far end reports our observed
// source port back to us.
func FormatVia(host string, port uint16, branch string) string {
	return fmt.Sprintf("SIP/2.0/UDP %s:%d;rport;branch=%s", host, port, branch)
}

// FormatNameAddr renders a "<uri>" or "<uri>;tag=..." From/To header value.
func FormatNameAddr(uri, tag string) string {
	if tag == "" {
		return fmt.Sprintf("<%s>", uri)
	}
	return fmt.Sprintf("<%s>;tag=%s", uri, tag)
}

// FormatCSeq renders a CSeq header value.
func FormatCSeq(seq uint32, method string) string {
	return fmt.Sprintf("%d %s", seq, method)
}
