// Package protocol defines the datagram messages exchanged with a remote controller.
package protocol

// MessageType is the value of the "type" discriminant on the wire
type MessageType string

const (
	// TypeHandshake carries a single numeric event code
	TypeHandshake MessageType = "aioc"

	// TypeConnectionStatus is only ever sent by us, as the handshake reply
	TypeConnectionStatus MessageType = "cs"

	// TypeMouseMove is a relative pointer displacement
	TypeMouseMove MessageType = "mmb"

	// TypeKeyboardText is a "--" delimited key sequence
	TypeKeyboardText MessageType = "ksb"

	// TypeKeyboardCode is a single raw key code
	TypeKeyboardCode MessageType = "kib"
)

// HandshakeCode is the numeric event carried by a Handshake message
type HandshakeCode uint8

const (
	ConnectionReceived HandshakeCode = 0
	MouseLeftPress     HandshakeCode = 56
	MouseLeftRelease   HandshakeCode = 57
	MouseRightPress    HandshakeCode = 58
	MouseRightRelease  HandshakeCode = 59
	WheelUp            HandshakeCode = 60
	WheelDown          HandshakeCode = 61
)

var handshakeCodeNames = map[HandshakeCode]string{
	ConnectionReceived: "ConnectionReceived",
	MouseLeftPress:     "MouseLeftPress",
	MouseLeftRelease:   "MouseLeftRelease",
	MouseRightPress:    "MouseRightPress",
	MouseRightRelease:  "MouseRightRelease",
	WheelUp:            "WheelUp",
	WheelDown:          "WheelDown",
}

// Valid reports whether c is one of the known codes
func (c HandshakeCode) Valid() bool {
	_, ok := handshakeCodeNames[c]
	return ok
}

func (c HandshakeCode) String() string {
	if name, ok := handshakeCodeNames[c]; ok {
		return name
	}
	return "HandshakeCode(unknown)"
}

// Command is one decoded datagram. The set of implementations is closed:
// Handshake, ConnectionStatus, MouseMove, KeyboardText and KeyboardCode.
type Command interface {
	Type() MessageType
	command()
}

// Handshake is a numeric-coded event. ConnectionReceived asks for the
// handshake reply, every other code is a mouse button or wheel action.
type Handshake struct {
	Code HandshakeCode `json:"id"`
}

// ConnectionStatus is the handshake reply
type ConnectionStatus struct {
	Sender  string `json:"sender"`
	Status  string `json:"status"`
	Message string `json:"statusMessage"`
}

// MouseMove is a relative pointer displacement
type MouseMove struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// KeyboardText carries a "--" delimited key sequence in Letter.
// State is opaque and forwarded untouched.
type KeyboardText struct {
	Letter string `json:"letter"`
	State  uint8  `json:"state"`
}

// KeyboardCode carries one raw platform key code
type KeyboardCode struct {
	Letter uint16 `json:"letter"`
	State  uint8  `json:"state"`
}

func (Handshake) Type() MessageType { return TypeHandshake }
func (ConnectionStatus) Type() MessageType { return TypeConnectionStatus }
func (MouseMove) Type() MessageType { return TypeMouseMove }
func (KeyboardText) Type() MessageType { return TypeKeyboardText }
func (KeyboardCode) Type() MessageType { return TypeKeyboardCode }

func (Handshake) command() {}
func (ConnectionStatus) command() {}
func (MouseMove) command() {}
func (KeyboardText) command() {}
func (KeyboardCode) command() {}

// Reply values sent in answer to ConnectionReceived
const (
	ReplySender = "server"
	ReplyStatus = "acceptUdpConnection"
)

// NewConnectionReply builds the handshake reply for a host description
// such as "darwin-14.2-arm64".
func NewConnectionReply(hostInfo string) ConnectionStatus {
	return ConnectionStatus{
		Sender:  ReplySender,
		Status:  ReplyStatus,
		Message: hostInfo,
	}
}
