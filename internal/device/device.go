// Package device talks to the sensor's tilt motor.
package device

import (
	"errors"
	"fmt"
)

const (
	MinTiltDegree = -31.0
	MaxTiltDegree = 31.0
	TiltStep      = 5.0
)

var (
	ErrTiltOutOfRange = errors.New("tilt degree out of range")
	ErrNoDevice       = errors.New("no device found")
	// ErrTiltUnknown marks a failed command when no tilt has been read yet.
	ErrTiltUnknown = errors.New("tilt degree unknown")
)

// Device is the command surface of the motor.
type Device interface {
	GetTiltDegree() (float64, error)
	SetTiltDegree(degree float64) error
}

// Error describes a failed device command.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func CheckTilt(degree float64) error {
	if degree < MinTiltDegree || degree > MaxTiltDegree {
		return fmt.Errorf("%w: %.1f not in [%.0f, %.0f]", ErrTiltOutOfRange, degree, MinTiltDegree, MaxTiltDegree)
	}
	return nil
}
