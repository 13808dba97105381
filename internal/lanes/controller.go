// Package lanes bounds stage concurrency with named semaphore lanes. The
// processing lane covers everything from fetch through moderation; the upload
// lane is sized one because the destination penalizes parallel sessions.
package lanes

import (
	"context"
	"fmt"

	"conveyor/internal/queue"
)

// Controller hands out execution slots per lane. A slot must be released by
// the goroutine that acquired it; workers do so in a defer.
type Controller struct {
	slots map[queue.Lane]chan struct{}
}

// NewController builds a controller with the given lane capacities.
func NewController(processing, upload int) *Controller {
	if processing <= 0 {
		processing = 1
	}
	if upload <= 0 {
		upload = 1
	}
	return &Controller{
		slots: map[queue.Lane]chan struct{}{
			queue.LaneProcessing: make(chan struct{}, processing),
			queue.LaneUpload:     make(chan struct{}, upload),
		},
	}
}

// Capacity reports the slot count for a lane, zero for unknown lanes.
func (c *Controller) Capacity(lane queue.Lane) int {
	ch, ok := c.slots[lane]
	if !ok {
		return 0
	}
	return cap(ch)
}

// InUse reports how many slots of a lane are currently held.
func (c *Controller) InUse(lane queue.Lane) int {
	ch, ok := c.slots[lane]
	if !ok {
		return 0
	}
	return len(ch)
}

// Acquire blocks until a slot in the lane frees up or the context ends.
func (c *Controller) Acquire(ctx context.Context, lane queue.Lane) error {
	ch, ok := c.slots[lane]
	if !ok {
		return fmt.Errorf("unknown lane %q", lane)
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the lane. Releasing a lane with no held slots
// panics, which surfaces double-release bugs immediately.
func (c *Controller) Release(lane queue.Lane) {
	ch, ok := c.slots[lane]
	if !ok {
		panic(fmt.Sprintf("lanes: release of unknown lane %q", lane))
	}
	select {
	case <-ch:
	default:
		panic(fmt.Sprintf("lanes: release of unheld slot in lane %q", lane))
	}
}
