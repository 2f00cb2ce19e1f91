// Package network runs the UDP relay that receives controller datagrams.
package network

import (
	"net"
)

// GetLocalIP returns the primary local IP address, the one a controller on
// the same network should send to. No packet is sent.
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
