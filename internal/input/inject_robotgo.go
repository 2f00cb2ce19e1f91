//go:build cgo

package input

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"
)

// RobotSupported reports whether RobotInjector can inject input in this build
const RobotSupported = true

// RobotInjector injects input through robotgo
type RobotInjector struct {
	rawOnce sync.Once
	rawKeys map[uint16]string
}

// NewRobotInjector creates a new robotgo backed injector
func NewRobotInjector() *RobotInjector {
	return &RobotInjector{}
}

// MoveRelative moves the cursor relative to its current position
func (i *RobotInjector) MoveRelative(dx, dy int) error {
	robotgo.MoveRelative(dx, dy)
	return nil
}

// Press holds a mouse button down
func (i *RobotInjector) Press(b Button) error {
	return robotgo.Toggle(string(b), "down")
}

// Release releases a mouse button
func (i *RobotInjector) Release(b Button) error {
	return robotgo.Toggle(string(b), "up")
}

// Scroll scrolls vertically. robotgo treats positive y as up, so the sign flips.
func (i *RobotInjector) Scroll(amount int) error {
	robotgo.Scroll(0, -amount)
	return nil
}

// TypeKeys taps each key in order
func (i *RobotInjector) TypeKeys(keys []Key) error {
	for _, k := range keys {
		var err error
		switch k.Kind {
		case KeyBackspace:
			err = robotgo.KeyTap("backspace")
		case KeyEnter:
			err = robotgo.KeyTap("enter")
		case KeySpace:
			err = robotgo.KeyTap("space")
		default:
			robotgo.TypeStr(string(k.Char))
		}
		if err != nil {
			return fmt.Errorf("tap %s: %w", k, err)
		}
	}
	return nil
}

// TapRaw taps the key whose robotgo key code is code.
//
// The code is looked up in robotgo.Keycode, robotgo's own portable key table,
// not the platform virtual key code (Windows VK_*, macOS kVK_*, X11 keysym).
// Controllers must send robotgo codes; a code missing from the table is an
// error.
func (i *RobotInjector) TapRaw(code uint16) error {
	i.rawOnce.Do(func() {
		i.rawKeys = make(map[uint16]string, len(robotgo.Keycode))
		for name, c := range robotgo.Keycode {
			// several names share a code; keep the shortest for stable lookups
			if prev, ok := i.rawKeys[c]; !ok || len(name) < len(prev) || (len(name) == len(prev) && name < prev) {
				i.rawKeys[c] = name
			}
		}
	})

	name, ok := i.rawKeys[code]
	if !ok {
		return fmt.Errorf("no key for raw code %d", code)
	}
	return robotgo.KeyTap(name)
}
