//go:build linux

package socketpool

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// control enables address reuse so every group can bind the same port, and
// disables IP_MULTICAST_ALL so a wildcard-bound socket only receives the
// groups joined on it instead of every group joined on the host.
func control(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_ALL, 0)
	})
	if err != nil {
		return err
	}
	return sockErr
}
