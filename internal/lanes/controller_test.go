package lanes_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"conveyor/internal/lanes"
	"conveyor/internal/queue"
)

// acquireSaturated reports whether an acquire on the lane blocks, without
// hanging the test.
func acquireSaturated(ctrl *lanes.Controller, lane queue.Lane) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return errors.Is(ctrl.Acquire(ctx, lane), context.DeadlineExceeded)
}

func TestAcquireRespectsCapacity(t *testing.T) {
	ctrl := lanes.NewController(2, 1)
	ctx := context.Background()

	if err := ctrl.Acquire(ctx, queue.LaneProcessing); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := ctrl.Acquire(ctx, queue.LaneProcessing); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if got := ctrl.InUse(queue.LaneProcessing); got != 2 {
		t.Fatalf("expected 2 held slots, got %d", got)
	}
	if !acquireSaturated(ctrl, queue.LaneProcessing) {
		t.Fatal("expected processing lane saturated")
	}

	// The upload lane is independent of the processing lane.
	if err := ctrl.Acquire(ctx, queue.LaneUpload); err != nil {
		t.Fatalf("upload acquire failed: %v", err)
	}
	if !acquireSaturated(ctrl, queue.LaneUpload) {
		t.Fatal("expected upload lane saturated at capacity 1")
	}

	ctrl.Release(queue.LaneProcessing)
	if got := ctrl.InUse(queue.LaneProcessing); got != 1 {
		t.Fatalf("expected 1 held slot after release, got %d", got)
	}
	if err := ctrl.Acquire(ctx, queue.LaneProcessing); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	ctrl := lanes.NewController(1, 1)
	if err := ctrl.Acquire(context.Background(), queue.LaneProcessing); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ctrl.Acquire(ctx, queue.LaneProcessing)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestConcurrentHoldersNeverExceedCapacity(t *testing.T) {
	const capacity = 3
	ctrl := lanes.NewController(capacity, 1)
	ctx := context.Background()

	var (
		current int64
		peak    int64
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctrl.Acquire(ctx, queue.LaneProcessing); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer ctrl.Release(queue.LaneProcessing)

			held := atomic.AddInt64(&current, 1)
			for {
				prev := atomic.LoadInt64(&peak)
				if held <= prev || atomic.CompareAndSwapInt64(&peak, prev, held) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > capacity {
		t.Fatalf("peak concurrent holders %d exceeds capacity %d", got, capacity)
	}
	if ctrl.InUse(queue.LaneProcessing) != 0 {
		t.Fatalf("expected all slots released, %d in use", ctrl.InUse(queue.LaneProcessing))
	}
}

func TestReleaseUnheldSlotPanics(t *testing.T) {
	ctrl := lanes.NewController(1, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double release")
		}
	}()
	ctrl.Release(queue.LaneProcessing)
}
