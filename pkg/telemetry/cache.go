// Package telemetry keeps the polled device state and republishes it
// as a periodic joint state stream.
//
// The cache is the only shared mutable state in gripperd: the poller
// writes it, the publisher reads it, and neither ever holds the lock
// across a device call.
package telemetry

import (
	"sync"

	"github.com/grasplab/go-gripper/pkg/gripper"
)

// Cache holds the last successfully polled device state behind a
// mutex. The slot is replaced wholesale; readers never observe a
// partially written value.
type Cache struct {
	mu    sync.Mutex
	state gripper.State
	valid bool
}

// Store replaces the cached state.
func (c *Cache) Store(st gripper.State) {
	c.mu.Lock()
	c.state = st
	c.valid = true
	c.mu.Unlock()
}

// Load returns a copy of the cached state, blocking on the lock.
// ok is false until the first successful poll.
func (c *Cache) Load() (gripper.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.valid
}

// TryLoad returns a copy of the cached state without blocking. When
// the poller is mid-write (or no state has been polled yet) it
// returns ok=false; the caller skips its tick rather than wait.
func (c *Cache) TryLoad() (gripper.State, bool) {
	if !c.mu.TryLock() {
		return gripper.State{}, false
	}
	defer c.mu.Unlock()
	return c.state, c.valid
}
