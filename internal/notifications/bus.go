package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"conveyor/internal/logging"
	"conveyor/internal/queue"
)

// Event is one task status change.
type Event struct {
	TaskID  string
	Status  queue.Status
	Stage   string
	Summary string
	Time    time.Time
}

// Sink receives events. Implementations must be safe for calls from the
// bus's single consumer goroutine.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Bus queues events for asynchronous delivery. Publishing never blocks the
// pipeline: a newer event for the same task replaces the queued one.
type Bus struct {
	mu      sync.Mutex
	pending map[string]Event
	order   []string

	wake   chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	sinks  []Sink
	logger *slog.Logger
}

// NewBus constructs a bus over the given sinks.
func NewBus(sinks []Sink, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		pending: make(map[string]Event),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		sinks:   sinks,
		logger:  logger,
	}
}

// Start launches the consumer goroutine.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop flushes queued events and waits for the consumer to exit.
func (b *Bus) Stop() {
	close(b.stop)
	b.wg.Wait()
}

// Publish queues an event. The newest event per task wins; ordering across
// different tasks is preserved.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	b.mu.Lock()
	if _, queued := b.pending[event.TaskID]; !queued {
		b.order = append(b.order, event.TaskID)
	}
	b.pending[event.TaskID] = event
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-b.wake:
			b.drain(ctx)
		case <-b.stop:
			b.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		event, ok := b.next()
		if !ok {
			return
		}
		for _, sink := range b.sinks {
			b.deliver(ctx, sink, event)
		}
	}
}

func (b *Bus) next() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return Event{}, false
	}
	taskID := b.order[0]
	b.order = b.order[1:]
	event := b.pending[taskID]
	delete(b.pending, taskID)
	return event, true
}

// deliver attempts a sink once and retries a single time on failure.
func (b *Bus) deliver(ctx context.Context, sink Sink, event Event) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = sink.Deliver(ctx, event); err == nil {
			return
		}
	}
	b.logger.Warn("notification delivery failed",
		logging.Error(err),
		logging.String(logging.FieldTaskID, event.TaskID),
		logging.String("status", string(event.Status)))
}
