package control

import (
	"context"
	"fmt"
	"math"

	"github.com/grasplab/go-gripper/pkg/gripper"
)

// Handlers implements the per-kind command logic against a device.
//
// Every handler has the same contract: it returns (Result, nil) when
// the command ran to completion — Result.Success reflects whether the
// command met its criterion — and (_, err) only for a device fault.
// Faults never propagate past the dispatcher.
type Handlers struct {
	dev gripper.Device

	widthTolerance float64
	defaultSpeed   float64
	graspEpsilon   float64
}

// NewHandlers creates the handler set. widthTolerance is the Move
// acceptance band; defaultSpeed and graspEpsilon parameterize the
// generic gripper command mapping.
func NewHandlers(dev gripper.Device, widthTolerance, defaultSpeed, graspEpsilon float64) *Handlers {
	return &Handlers{
		dev:            dev,
		widthTolerance: widthTolerance,
		defaultSpeed:   defaultSpeed,
		graspEpsilon:   graspEpsilon,
	}
}

// Home calibrates the gripper.
func (h *Handlers) Home(ctx context.Context) (Result, error) {
	if err := h.dev.Home(ctx); err != nil {
		return Result{}, err
	}
	return Result{Success: true}, nil
}

// Stop halts any in-flight motion. It is valid at any time, also
// while another command is executing; the device preempts that
// command's call.
func (h *Handlers) Stop(ctx context.Context) (Result, error) {
	if err := h.dev.Stop(ctx); err != nil {
		return Result{}, err
	}
	return Result{Success: true}, nil
}

// Move drives to the requested width. Success requires the reached
// width to be within the configured tolerance; missing the target is
// a command failure, not a fault.
func (h *Handlers) Move(ctx context.Context, req MoveRequest) (Result, error) {
	if req.Width < 0 {
		return Result{Error: fmt.Sprintf("invalid width %v: must be >= 0", req.Width)}, nil
	}
	if req.Speed <= 0 {
		return Result{Error: fmt.Sprintf("invalid speed %v: must be > 0", req.Speed)}, nil
	}

	reached, err := h.dev.Move(ctx, req.Width, req.Speed)
	if err != nil {
		return Result{}, err
	}
	if math.Abs(reached-req.Width) >= h.widthTolerance {
		return Result{
			Error: fmt.Sprintf("width not reached: requested %.4f, reached %.4f", req.Width, reached),
		}, nil
	}
	return Result{Success: true}, nil
}

// Grasp closes onto an object. Success requires the device to report
// a grasp at a width inside [width-epsilon_inner, width+epsilon_outer].
func (h *Handlers) Grasp(ctx context.Context, req GraspRequest) (Result, error) {
	if req.Width < 0 {
		return Result{Error: fmt.Sprintf("invalid width %v: must be >= 0", req.Width)}, nil
	}
	if req.EpsilonInner < 0 || req.EpsilonOuter < 0 {
		return Result{Error: "invalid epsilon: must be >= 0"}, nil
	}

	st, err := h.dev.Grasp(ctx, req.Width, req.Speed, req.Force, req.EpsilonInner, req.EpsilonOuter)
	if err != nil {
		return Result{}, err
	}
	if !st.IsGrasped || st.Width < req.Width-req.EpsilonInner || st.Width > req.Width+req.EpsilonOuter {
		return Result{
			Error: fmt.Sprintf("object not grasped: width %.4f outside [%.4f, %.4f]",
				st.Width, req.Width-req.EpsilonInner, req.Width+req.EpsilonOuter),
		}, nil
	}
	return Result{Success: true}, nil
}

// GripperCommand bridges the generic open/close request onto Move or
// Grasp. The goal position is per finger, so the target width is
// twice the position. MaxEffort selects the mode: > 0 grasps with
// that force inside the configured epsilon band, 0 moves.
func (h *Handlers) GripperCommand(ctx context.Context, req GripperCommandRequest) (Result, error) {
	if req.Position < 0 {
		return Result{Error: fmt.Sprintf("invalid position %v: must be >= 0", req.Position)}, nil
	}

	width := 2 * req.Position

	st, err := h.dev.ReadState(ctx)
	if err != nil {
		return Result{}, err
	}
	if width > st.MaxWidth {
		return Result{
			Error: fmt.Sprintf("target width %.4f exceeds max width %.4f", width, st.MaxWidth),
		}, nil
	}

	if req.MaxEffort > 0 {
		return h.Grasp(ctx, GraspRequest{
			Width:        width,
			Speed:        h.defaultSpeed,
			Force:        req.MaxEffort,
			EpsilonInner: h.graspEpsilon,
			EpsilonOuter: h.graspEpsilon,
		})
	}
	return h.Move(ctx, MoveRequest{Width: width, Speed: h.defaultSpeed})
}
