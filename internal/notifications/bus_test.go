package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/queue"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	failures int
	calls    int
}

func (s *recordingSink) Deliver(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBusDeliversEvents(t *testing.T) {
	sink := &recordingSink{}
	bus := NewBus([]Sink{sink}, nil)
	bus.Start(context.Background())
	defer bus.Stop()

	bus.Publish(Event{TaskID: "a", Status: queue.StatusDownloading, Summary: "started"})
	bus.Publish(Event{TaskID: "b", Status: queue.StatusCompleted})

	waitFor(t, func() bool { return len(sink.snapshot()) == 2 })
	events := sink.snapshot()
	if events[0].TaskID != "a" || events[1].TaskID != "b" {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[0].Time.IsZero() {
		t.Fatal("event time should be stamped")
	}
}

func TestBusCoalescesPerTask(t *testing.T) {
	sink := &recordingSink{}
	bus := NewBus([]Sink{sink}, nil)

	// Publish before Start so everything queues up; only the latest event
	// per task may survive.
	for _, status := range []queue.Status{
		queue.StatusDownloading,
		queue.StatusSubtitleProcessing,
		queue.StatusEnhancing,
		queue.StatusCompleted,
	} {
		bus.Publish(Event{TaskID: "task", Status: status})
	}
	bus.Publish(Event{TaskID: "other", Status: queue.StatusPending})

	bus.Start(context.Background())
	bus.Stop()

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 coalesced events, got %d: %+v", len(events), events)
	}
	if events[0].TaskID != "task" || events[0].Status != queue.StatusCompleted {
		t.Fatalf("last write should win: %+v", events[0])
	}
}

func TestBusRetriesOnce(t *testing.T) {
	sink := &recordingSink{failures: 1}
	bus := NewBus([]Sink{sink}, nil)
	bus.Start(context.Background())

	bus.Publish(Event{TaskID: "retry", Status: queue.StatusFailed})
	bus.Stop()

	if len(sink.snapshot()) != 1 {
		t.Fatalf("event should be delivered on the retry: %+v", sink.snapshot())
	}
	if sink.calls != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", sink.calls)
	}
}

func TestBusGivesUpAfterSecondFailure(t *testing.T) {
	sink := &recordingSink{failures: 2}
	bus := NewBus([]Sink{sink}, nil)
	bus.Start(context.Background())

	bus.Publish(Event{TaskID: "lost", Status: queue.StatusFailed})
	bus.Stop()

	if len(sink.snapshot()) != 0 {
		t.Fatalf("event should be dropped after the retry: %+v", sink.snapshot())
	}
	if sink.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", sink.calls)
	}
}

func TestWebhookSinkPostsAndFilters(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		paths = append(paths, r.URL.Path)
		mu.Unlock()
	}))
	defer server.Close()

	sink := NewWebhookSink(config.Notifications{
		WebhookURL:  server.URL,
		Topic:       "conveyor",
		QueueEvents: false,
		Review:      true,
		Errors:      true,
	})

	ctx := context.Background()
	// queue events are filtered out
	if err := sink.Deliver(ctx, Event{TaskID: "t", Status: queue.StatusDownloading}); err != nil {
		t.Fatalf("filtered event errored: %v", err)
	}
	if err := sink.Deliver(ctx, Event{TaskID: "t", Status: queue.StatusAwaitingReview}); err != nil {
		t.Fatalf("review event failed: %v", err)
	}
	if err := sink.Deliver(ctx, Event{TaskID: "t", Status: queue.StatusFailed}); err != nil {
		t.Fatalf("error event failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("expected 2 webhook posts, got %d", len(paths))
	}
	if paths[0] != "/conveyor" {
		t.Fatalf("topic not appended: %q", paths[0])
	}
	if titles[0] != "conveyor: awaiting_manual_review" {
		t.Fatalf("unexpected title: %q", titles[0])
	}
}

func TestWebhookSinkNilWithoutURL(t *testing.T) {
	if sink := NewWebhookSink(config.Notifications{}); sink != nil {
		t.Fatal("expected nil sink without a webhook url")
	}
}
