//go:build linux

package sipstack

import (
	"net"

	"golang.org/x/sys/unix"
)

// rcvBufSize widens the kernel receive buffer on the SIP socket so a burst
// of retransmitted requests (a flaky peer hammering INVITE) does not get
// dropped at the socket layer before the task's own 10ms poll catches up.
const rcvBufSize = 256 * 1024

// TuneSocket applies Linux-specific socket options to the SIP task's owned
// UDP socket: SO_REUSEADDR (so a restarted process can rebind promptly) and
// a widened SO_RCVBUF, mirroring the teacher's
// pkg/rtp/transport_socket_linux.go. Best-effort: failures are returned to
// the caller to log, not to abort startup over.
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
