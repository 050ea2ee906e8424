//go:build !unix

package socketpool

import "syscall"

func control(network, address string, c syscall.RawConn) error {
	return nil
}
