//go:build linux

package rtpstream

import (
	"net"

	"golang.org/x/sys/unix"
)

// rcvBufSize widens the kernel receive buffer on the RTP socket so a burst
// of 20ms frames arriving back-to-back (e.g. after a scheduling hiccup on
// the peer) does not get dropped before the task's own tick catches up.
const rcvBufSize = 256 * 1024

// TuneSocket applies Linux-specific socket options to the RTP task's owned
// UDP socket: SO_REUSEADDR and a widened SO_RCVBUF, mirroring the teacher's
// pkg/rtp/transport_socket_linux.go.
func TuneSocket(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = err
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufSize)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
