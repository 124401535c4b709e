package telemetry

import (
	"context"
	"time"

	"github.com/grasplab/go-gripper/internal/log"
)

// Sink receives published joint state samples.
type Sink interface {
	PublishSample(s JointStateSample) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s JointStateSample) error

// PublishSample implements Sink.
func (f SinkFunc) PublishSample(s JointStateSample) error {
	return f(s)
}

// Publisher emits a joint state sample to every sink at a fixed rate.
// Cadence takes priority over completeness: when the cache lock is
// contended the tick is skipped, so the loop never stalls behind the
// poller.
type Publisher struct {
	cache    *Cache
	names    [2]string
	interval time.Duration
	sinks    []Sink
}

// NewPublisher creates a publisher for the two named finger joints.
func NewPublisher(cache *Cache, names [2]string, interval time.Duration, sinks ...Sink) *Publisher {
	return &Publisher{
		cache:    cache,
		names:    names,
		interval: interval,
		sinks:    sinks,
	}
}

// Run starts the publish loop. Blocks until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info("telemetry publisher started", "interval", p.interval, "joints", p.names)
	for {
		select {
		case <-ctx.Done():
			log.Info("telemetry publisher stopped")
			return
		case <-ticker.C:
			p.tick(time.Now())
		}
	}
}

// tick copies the cached state under a non-blocking lock attempt and
// builds and emits the sample outside of it.
func (p *Publisher) tick(now time.Time) {
	st, ok := p.cache.TryLoad()
	if !ok {
		return
	}

	sample := NewJointStateSample(p.names, st, now)
	for _, sink := range p.sinks {
		if err := sink.PublishSample(sample); err != nil {
			log.Warn("telemetry publish failed", "error", err)
		}
	}
}
