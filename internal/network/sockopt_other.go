//go:build !windows

package network

import "syscall"

// controlSocket is a no-op off Windows. Without SO_REUSEADDR a port already
// held by a running relay fails to bind.
func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
