package network

import "fmt"

// TransportError wraps a socket failure. Op is "bind", "read" or "send".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("udp %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
