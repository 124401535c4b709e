package gripper

import (
	"context"
	"sync"
	"time"
)

// Sim is an in-memory gripper for tests and for running gripperd
// without hardware. It honors the Device contract: motions are
// serialized, block for a motion duration, and are preempted by Stop.
type Sim struct {
	// MotionDelay overrides the simulated motion duration when set.
	// Zero means the duration is derived from distance and speed.
	MotionDelay time.Duration

	motionMu sync.Mutex // serializes motion commands

	mu          sync.Mutex
	state       State
	homed       bool
	objectWidth float64 // simulated object between the fingers, <0 = none
	slip        float64 // offset applied to every reached width
	stop        chan struct{}
	failures    map[string]string
}

var _ Device = (*Sim)(nil)

// NewSim creates a simulated gripper with an 80mm opening.
func NewSim() *Sim {
	return &Sim{
		state: State{
			Width:       0.08,
			MaxWidth:    0.08,
			Temperature: 36.0,
		},
		objectWidth: -1,
		failures:    make(map[string]string),
	}
}

// PlaceObject puts a simulated object of the given width between the
// fingers. Grasp commands will close onto it.
func (s *Sim) PlaceObject(width float64) {
	s.mu.Lock()
	s.objectWidth = width
	s.mu.Unlock()
}

// SetSlip makes every motion stop short (or long) by offset, for
// exercising width tolerance checks.
func (s *Sim) SetSlip(offset float64) {
	s.mu.Lock()
	s.slip = offset
	s.mu.Unlock()
}

// FailNext makes the next call of the given op ("home", "stop",
// "move", "grasp", "read") fail with a device fault.
func (s *Sim) FailNext(op, msg string) {
	s.mu.Lock()
	s.failures[op] = msg
	s.mu.Unlock()
}

// Home implements Device.
func (s *Sim) Home(ctx context.Context) error {
	s.motionMu.Lock()
	defer s.motionMu.Unlock()

	if f := s.takeFailure("home"); f != nil {
		return f
	}
	if err := s.motion(ctx, "home", s.state.MaxWidth); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Width = s.state.MaxWidth
	s.state.IsGrasped = false
	s.homed = true
	s.mu.Unlock()
	return nil
}

// Stop implements Device. It interrupts any in-flight motion and
// releases the grasp. Stop never queues behind a motion.
func (s *Sim) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.failures["stop"]; ok {
		delete(s.failures, "stop")
		return NewFault("stop", "%s", msg)
	}
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.state.IsGrasped = false
	return nil
}

// Move implements Device.
func (s *Sim) Move(ctx context.Context, width, speed float64) (float64, error) {
	if speed <= 0 {
		return 0, NewFault("move", "speed must be positive, got %v", speed)
	}
	s.motionMu.Lock()
	defer s.motionMu.Unlock()

	if f := s.takeFailure("move"); f != nil {
		return 0, f
	}
	if err := s.motion(ctx, "move", abs(width-s.currentWidth())/speed); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.state.Width = width + s.slip
	s.state.IsGrasped = false
	reached := s.state.Width
	s.mu.Unlock()
	return reached, nil
}

// Grasp implements Device.
func (s *Sim) Grasp(ctx context.Context, width, speed, force, epsilonInner, epsilonOuter float64) (State, error) {
	if speed <= 0 {
		return State{}, NewFault("grasp", "speed must be positive, got %v", speed)
	}
	s.motionMu.Lock()
	defer s.motionMu.Unlock()

	if f := s.takeFailure("grasp"); f != nil {
		return State{}, f
	}
	if err := s.motion(ctx, "grasp", abs(width-s.currentWidth())/speed); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	if s.objectWidth >= 0 {
		// Fingers close onto the object and hold it.
		s.state.Width = s.objectWidth + s.slip
		s.state.IsGrasped = force > 0
	} else {
		s.state.Width = width + s.slip
		s.state.IsGrasped = false
	}
	st := s.state
	s.mu.Unlock()
	return st, nil
}

// ReadState implements Device.
func (s *Sim) ReadState(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, NewFault("read", "%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.failures["read"]; ok {
		delete(s.failures, "read")
		return State{}, NewFault("read", "%s", msg)
	}
	return s.state, nil
}

// motion blocks for the duration of a simulated move over the given
// distance, returning a Fault when stopped or cancelled mid-way.
func (s *Sim) motion(ctx context.Context, op string, seconds float64) error {
	dur := time.Duration(seconds * float64(time.Second))
	if s.MotionDelay > 0 {
		dur = s.MotionDelay
	}

	s.mu.Lock()
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.stop != nil {
			s.stop = nil
		}
		s.mu.Unlock()
	}()

	select {
	case <-time.After(dur):
		return nil
	case <-stop:
		return NewFault(op, "%s interrupted by stop", op)
	case <-ctx.Done():
		return NewFault(op, "%s cancelled: %v", op, ctx.Err())
	}
}

func (s *Sim) takeFailure(op string) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return NewFault(op, "%s", msg)
	}
	return nil
}

func (s *Sim) currentWidth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Width
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
