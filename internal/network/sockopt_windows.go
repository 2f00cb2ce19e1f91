//go:build windows

package network

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SIO_UDP_CONNRESET (IOC_IN | IOC_VENDOR | 12)
const sioUDPConnReset = 0x9800000C

// controlSocket disables WSAECONNRESET on the socket. Without it, a handshake
// reply to a peer that is not listening makes the next read fail.
func controlSocket(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		flag := uint32(0)
		var returned uint32
		sockErr = windows.WSAIoctl(
			windows.Handle(fd),
			sioUDPConnReset,
			(*byte)(unsafe.Pointer(&flag)),
			uint32(unsafe.Sizeof(flag)),
			nil, 0, &returned, nil, 0,
		)
	})
	if err != nil {
		return err
	}
	return sockErr
}
