//go:build !linux

package sipstack

import "net"

// TuneSocket is a no-op outside Linux; the socket-tuning options it applies
// there (SO_REUSEADDR, widened SO_RCVBUF) are a Linux-specific optimization,
// not a correctness requirement.
func TuneSocket(conn *net.UDPConn) error {
	return nil
}
