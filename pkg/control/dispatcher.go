package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/grasplab/go-gripper/internal/log"
)

// maxRetained bounds the number of finished commands kept for status
// queries. Oldest terminal commands are evicted first.
const maxRetained = 256

// Dispatcher routes requests to their handlers and owns the command
// lifecycle. Each accepted request runs in its own goroutine, so
// different command kinds execute concurrently; the device adapter
// serializes the actual hardware access.
//
// Terminal mapping: the handler returned a Result -> Succeeded when
// Success is true, Rejected otherwise; the handler returned a device
// fault -> Aborted with the fault message; the handler panicked ->
// Aborted. A leaked panic never takes the process down.
type Dispatcher struct {
	h *Handlers

	mu       sync.RWMutex
	commands map[uuid.UUID]*Command
	order    []uuid.UUID
}

// NewDispatcher creates a dispatcher over the given handlers.
func NewDispatcher(h *Handlers) *Dispatcher {
	return &Dispatcher{
		h:        h,
		commands: make(map[uuid.UUID]*Command),
	}
}

// Submit accepts a request of the given kind and starts executing it.
// It returns immediately; use the returned Command to observe the
// outcome. req must match the kind (nil for Home and Stop) or Submit
// fails without creating a command.
func (d *Dispatcher) Submit(ctx context.Context, kind Kind, req any) (*Command, error) {
	if err := checkRequest(kind, req); err != nil {
		return nil, err
	}

	cmd := newCommand(kind)
	d.register(cmd)
	log.Debug("command accepted", "id", cmd.ID, "kind", kind)

	go d.execute(ctx, cmd, req)
	return cmd, nil
}

// Get returns the command with the given id.
func (d *Dispatcher) Get(id uuid.UUID) (*Command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cmd, ok := d.commands[id]
	return cmd, ok
}

func (d *Dispatcher) register(cmd *Command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands[cmd.ID] = cmd
	d.order = append(d.order, cmd.ID)

	for len(d.order) > maxRetained {
		oldest, ok := d.commands[d.order[0]]
		if ok && !oldest.Status().Terminal() {
			break
		}
		delete(d.commands, d.order[0])
		d.order = d.order[1:]
	}
}

// execute runs the handler and records exactly one terminal state.
func (d *Dispatcher) execute(ctx context.Context, cmd *Command, req any) {
	defer func() {
		if p := recover(); p != nil {
			// Defensive boundary: a handler panic aborts the command,
			// never the service.
			log.Error("command handler panicked", "id", cmd.ID, "kind", cmd.Kind, "panic", p)
			cmd.finish(StatusAborted, Result{Error: fmt.Sprintf("internal error: %v", p)})
		}
	}()

	cmd.setExecuting()

	res, err := d.dispatch(ctx, cmd.Kind, req)
	if err != nil {
		log.Error("command failed", "id", cmd.ID, "kind", cmd.Kind, "error", err)
		cmd.finish(StatusAborted, Result{Error: err.Error()})
		return
	}

	status := StatusSucceeded
	if !res.Success {
		status = StatusRejected
	}
	log.Info("command finished", "id", cmd.ID, "kind", cmd.Kind, "success", res.Success)
	cmd.finish(status, res)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, req any) (Result, error) {
	switch kind {
	case KindHome:
		return d.h.Home(ctx)
	case KindStop:
		return d.h.Stop(ctx)
	case KindMove:
		return d.h.Move(ctx, req.(MoveRequest))
	case KindGrasp:
		return d.h.Grasp(ctx, req.(GraspRequest))
	case KindGripperCommand:
		return d.h.GripperCommand(ctx, req.(GripperCommandRequest))
	default:
		return Result{}, fmt.Errorf("unknown command kind %q", kind)
	}
}

func checkRequest(kind Kind, req any) error {
	switch kind {
	case KindHome, KindStop:
		if req != nil {
			return fmt.Errorf("%s takes no request body", kind)
		}
	case KindMove:
		if _, ok := req.(MoveRequest); !ok {
			return fmt.Errorf("move requires a MoveRequest")
		}
	case KindGrasp:
		if _, ok := req.(GraspRequest); !ok {
			return fmt.Errorf("grasp requires a GraspRequest")
		}
	case KindGripperCommand:
		if _, ok := req.(GripperCommandRequest); !ok {
			return fmt.Errorf("gripper_command requires a GripperCommandRequest")
		}
	default:
		return fmt.Errorf("unknown command kind %q", kind)
	}
	return nil
}
