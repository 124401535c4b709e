package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grasplab/go-gripper/pkg/gripper"
)

func TestCache_EmptyUntilFirstStore(t *testing.T) {
	c := &Cache{}

	if _, ok := c.Load(); ok {
		t.Error("Load must report no state before the first poll")
	}
	if _, ok := c.TryLoad(); ok {
		t.Error("TryLoad must report no state before the first poll")
	}

	c.Store(gripper.State{Width: 0.05})
	st, ok := c.Load()
	if !ok || st.Width != 0.05 {
		t.Errorf("Load = (%+v, %v), want stored state", st, ok)
	}
}

func TestCache_TryLoadSkipsUnderContention(t *testing.T) {
	c := &Cache{}
	c.Store(gripper.State{Width: 0.05})

	// Writer holds the lock mid-write.
	c.mu.Lock()
	if _, ok := c.TryLoad(); ok {
		t.Error("TryLoad must fail while the writer holds the lock")
	}
	c.mu.Unlock()

	if _, ok := c.TryLoad(); !ok {
		t.Error("TryLoad must succeed once the lock is free")
	}
}

func TestPoller_TickStoresState(t *testing.T) {
	sim := gripper.NewSim()
	c := &Cache{}
	p := NewPoller(sim, c, 10*time.Millisecond)

	p.tick(context.Background())

	st, ok := c.Load()
	if !ok {
		t.Fatal("no state cached after a successful tick")
	}
	if st.MaxWidth != 0.08 {
		t.Errorf("max width = %v, want 0.08", st.MaxWidth)
	}
}

// A failed read skips the tick: the cache keeps the last good value
// and the loop keeps going.
func TestPoller_FaultKeepsStaleState(t *testing.T) {
	sim := gripper.NewSim()
	c := &Cache{}
	p := NewPoller(sim, c, 10*time.Millisecond)

	p.tick(context.Background())
	before, _ := c.Load()

	sim.FailNext("read", "connection lost")
	p.tick(context.Background())

	after, ok := c.Load()
	if !ok {
		t.Fatal("cache lost its value after a failed poll")
	}
	if after != before {
		t.Errorf("state = %+v, want stale %+v", after, before)
	}

	// Next tick recovers.
	p.tick(context.Background())
	if _, ok := c.Load(); !ok {
		t.Error("poller did not recover after a transient fault")
	}
}

func TestSample_PositionsSumToWidth(t *testing.T) {
	names := [2]string{"finger_joint1", "finger_joint2"}
	st := gripper.State{Width: 0.05}

	s := NewJointStateSample(names, st, time.Now())

	if s.Positions[0] != 0.025 || s.Positions[1] != 0.025 {
		t.Errorf("positions = %v, want [0.025 0.025]", s.Positions)
	}
	if sum := s.Positions[0] + s.Positions[1]; sum != st.Width {
		t.Errorf("positions sum to %v, want width %v", sum, st.Width)
	}
	if s.Velocity != [2]float64{} || s.Effort != [2]float64{} {
		t.Error("velocities and efforts must publish as zero")
	}
}

type captureSink struct {
	mu      sync.Mutex
	samples []JointStateSample
}

func (s *captureSink) PublishSample(sample JointStateSample) error {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *captureSink) last() JointStateSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples[len(s.samples)-1]
}

// Mirrors the stale-cache scenario: a successful poll, a publish, a
// failed poll, and another publish that emits the same stale sample.
func TestPublisher_StaleCacheRetained(t *testing.T) {
	sim := gripper.NewSim()
	c := &Cache{}
	poller := NewPoller(sim, c, 10*time.Millisecond)
	sink := &captureSink{}
	pub := NewPublisher(c, [2]string{"j1", "j2"}, 10*time.Millisecond, sink)

	if _, err := sim.Move(context.Background(), 0.05, 0.1); err != nil {
		t.Fatal(err)
	}
	poller.tick(context.Background())
	pub.tick(time.Now())

	sim.FailNext("read", "connection lost")
	poller.tick(context.Background())
	pub.tick(time.Now())

	if sink.count() != 2 {
		t.Fatalf("samples = %d, want 2", sink.count())
	}
	for _, sample := range sink.samples {
		if sample.Positions != [2]float64{0.025, 0.025} {
			t.Errorf("positions = %v, want [0.025 0.025]", sample.Positions)
		}
	}
}

func TestPublisher_SkipsTickBeforeFirstPoll(t *testing.T) {
	c := &Cache{}
	sink := &captureSink{}
	pub := NewPublisher(c, [2]string{"j1", "j2"}, 10*time.Millisecond, sink)

	pub.tick(time.Now())

	if sink.count() != 0 {
		t.Errorf("samples = %d, want 0 before the first poll", sink.count())
	}
}

// Under continuous writer contention the publish loop keeps
// completing ticks: each tick is one non-blocking lock attempt, so
// the loop never stalls even if individual ticks are skipped.
func TestPublisher_NoStarvationUnderWriterContention(t *testing.T) {
	c := &Cache{}
	c.Store(gripper.State{Width: 0.05})
	sink := &captureSink{}
	pub := NewPublisher(c, [2]string{"j1", "j2"}, time.Millisecond, sink)

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			c.Store(gripper.State{Width: 0.05})
		}
	}()

	start := time.Now()
	const ticks = 200
	for i := 0; i < ticks; i++ {
		pub.tick(time.Now())
	}
	elapsed := time.Since(start)

	stop.Store(true)
	wg.Wait()

	// Non-blocking ticks must complete far faster than the writer
	// could ever hold them up.
	if elapsed > 2*time.Second {
		t.Errorf("%d ticks took %v, publisher is being starved", ticks, elapsed)
	}
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	c := &Cache{}
	c.Store(gripper.State{Width: 0.04})
	sink := &captureSink{}
	pub := NewPublisher(c, [2]string{"j1", "j2"}, time.Millisecond, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop on cancel")
	}

	if sink.count() < 5 {
		t.Errorf("samples = %d, want at least 5 over 50ms at 1kHz", sink.count())
	}
	if sink.last().Positions != [2]float64{0.02, 0.02} {
		t.Errorf("positions = %v, want [0.02 0.02]", sink.last().Positions)
	}
}
