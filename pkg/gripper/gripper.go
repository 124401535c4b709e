// Package gripper talks to a network-attached parallel gripper.
//
// Device is the single hardware boundary of gripperd: every command
// handler and the state poller go through it. Implementations own the
// connection and guarantee at most one in-flight motion command;
// concurrent motion calls queue, Stop preempts.
package gripper

import (
	"context"
	"errors"
	"fmt"
)

// State is a snapshot of the gripper as reported by the device.
// It is replaced wholesale on every successful read, never mutated.
type State struct {
	Width       float64 `json:"width"`
	MaxWidth    float64 `json:"max_width"`
	IsGrasped   bool    `json:"is_grasped"`
	Temperature float64 `json:"temperature"`
}

// Fault is an error raised by the device driver: the requested
// hardware operation could not be completed (connection, timeout,
// hardware error, or preemption by Stop).
type Fault struct {
	Op  string
	Msg string
}

func (f *Fault) Error() string {
	return f.Msg
}

// NewFault creates a device fault for the given operation.
func NewFault(op, format string, args ...any) *Fault {
	return &Fault{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsFault reports whether err is (or wraps) a device fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// Device is the gripper hardware interface. All calls block for the
// duration of the physical operation and honor ctx cancellation.
type Device interface {
	// Home calibrates the gripper and detects its maximum width.
	Home(ctx context.Context) error

	// Stop aborts any in-flight motion and releases grasp force.
	// It is callable at any time, including while another command is
	// executing; the preempted command returns a Fault.
	Stop(ctx context.Context) error

	// Move drives the fingers to width at the given speed and
	// returns the width actually reached.
	Move(ctx context.Context, width, speed float64) (float64, error)

	// Grasp closes to width at the given speed, applying force once
	// an object is contacted inside the epsilon band. It returns the
	// device state after the attempt.
	Grasp(ctx context.Context, width, speed, force, epsilonInner, epsilonOuter float64) (State, error)

	// ReadState reads the current device state.
	ReadState(ctx context.Context) (State, error)
}
