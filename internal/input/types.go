// Package input turns relay commands into synthetic mouse and keyboard events.
package input

// Button identifies a mouse button
type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
)

// Injector defines the interface for injecting input events.
// Calls are made from a single goroutine, in packet arrival order.
type Injector interface {
	// MoveRelative moves the cursor by (dx, dy) from its current position
	MoveRelative(dx, dy int) error

	// Press holds a mouse button down
	Press(b Button) error

	// Release lets a mouse button go
	Release(b Button) error

	// Scroll scrolls vertically; negative is up, positive is down
	Scroll(amount int) error

	// TypeKeys taps each key in order
	TypeKeys(keys []Key) error

	// TapRaw taps one raw key code, in robotgo.Keycode numbering
	TapRaw(code uint16) error
}

var (
	_ Injector = (*RobotInjector)(nil)
	_ Injector = (*LogInjector)(nil)
)
