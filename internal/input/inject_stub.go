//go:build !cgo

package input

import (
	"errors"
)

// Stub implementation for builds without cgo, where robotgo is unavailable

// RobotSupported reports whether RobotInjector can inject input in this build
const RobotSupported = false

// ErrUnsupported is returned by every method of the stub injector
var ErrUnsupported = errors.New("input injection requires a cgo build")

// RobotInjector is a stub input injector
type RobotInjector struct{}

// NewRobotInjector creates a new stub injector
func NewRobotInjector() *RobotInjector {
	return &RobotInjector{}
}

func (i *RobotInjector) MoveRelative(dx, dy int) error { return ErrUnsupported }
func (i *RobotInjector) Press(b Button) error          { return ErrUnsupported }
func (i *RobotInjector) Release(b Button) error        { return ErrUnsupported }
func (i *RobotInjector) Scroll(amount int) error       { return ErrUnsupported }
func (i *RobotInjector) TypeKeys(keys []Key) error     { return ErrUnsupported }
func (i *RobotInjector) TapRaw(code uint16) error      { return ErrUnsupported }
