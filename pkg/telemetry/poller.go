package telemetry

import (
	"context"
	"time"

	"github.com/grasplab/go-gripper/internal/log"
	"github.com/grasplab/go-gripper/pkg/gripper"
)

// Poller refreshes the cache from the device at a fixed cadence,
// independent of command processing. A failed read skips the tick and
// keeps the previous value; transient device faults never stop the
// loop.
type Poller struct {
	dev      gripper.Device
	cache    *Cache
	interval time.Duration
}

// NewPoller creates a poller reading the device every interval.
func NewPoller(dev gripper.Device, cache *Cache, interval time.Duration) *Poller {
	return &Poller{
		dev:      dev,
		cache:    cache,
		interval: interval,
	}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info("state poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("state poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick reads the device once and stores the snapshot. The cache lock
// is only taken after the read has completed.
func (p *Poller) tick(ctx context.Context) {
	st, err := p.dev.ReadState(ctx)
	if err != nil {
		log.Warn("state poll failed", "error", err)
		return
	}
	p.cache.Store(st)
}
