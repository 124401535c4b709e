// Package control implements the gripper command pipeline: a closed
// set of command kinds, one handler per kind, and a dispatcher that
// runs each accepted request to exactly one terminal state.
package control

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies one of the supported gripper commands.
type Kind string

const (
	KindHome           Kind = "home"
	KindStop           Kind = "stop"
	KindMove           Kind = "move"
	KindGrasp          Kind = "grasp"
	KindGripperCommand Kind = "gripper_command"
)

// MoveRequest drives the fingers to a target width.
type MoveRequest struct {
	Width float64 `json:"width"`
	Speed float64 `json:"speed"`
}

// GraspRequest closes onto an object around the target width.
type GraspRequest struct {
	Width        float64 `json:"width"`
	Speed        float64 `json:"speed"`
	Force        float64 `json:"force"`
	EpsilonInner float64 `json:"epsilon_inner"`
	EpsilonOuter float64 `json:"epsilon_outer"`
}

// GripperCommandRequest is the generic open/close request. Position
// is a per-finger joint position; MaxEffort > 0 turns the command
// into a grasp.
type GripperCommandRequest struct {
	Position  float64 `json:"position"`
	MaxEffort float64 `json:"max_effort"`
}

// Result is the terminal outcome of a command. It is produced exactly
// once per request.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Status is the lifecycle state of a command.
// Pending -> Executing -> {Succeeded, Rejected, Aborted}.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusRejected || s == StatusAborted
}

// Command tracks one accepted request through its lifecycle.
type Command struct {
	ID   uuid.UUID
	Kind Kind

	mu     sync.Mutex
	status Status
	result Result
	done   chan struct{}
}

func newCommand(kind Kind) *Command {
	return &Command{
		ID:     uuid.New(),
		Kind:   kind,
		status: StatusPending,
		done:   make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (c *Command) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Result returns the terminal result. ok is false until the command
// reaches a terminal state.
func (c *Command) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.status.Terminal()
}

// Done is closed when the command reaches a terminal state.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the command is terminal or ctx expires.
func (c *Command) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		res, _ := c.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Command) setExecuting() {
	c.mu.Lock()
	if c.status == StatusPending {
		c.status = StatusExecuting
	}
	c.mu.Unlock()
}

// finish records the terminal state. Only the first call takes
// effect; a command never transitions twice.
func (c *Command) finish(status Status, res Result) {
	c.mu.Lock()
	if c.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.result = res
	c.mu.Unlock()
	close(c.done)
}
