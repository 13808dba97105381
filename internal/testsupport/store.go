package testsupport

import (
	"context"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a pending task for tests using the provided store.
func NewTask(t testing.TB, store *queue.Store, sourceURL, title string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), sourceURL, title)
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}

// AdvanceTask applies a sequence of events to a task, failing the test on the
// first rejected transition. It returns the task in its final state.
func AdvanceTask(t testing.TB, store *queue.Store, id string, events ...queue.Event) *queue.Task {
	t.Helper()

	var task *queue.Task
	var err error
	for _, event := range events {
		task, err = store.Transition(context.Background(), id, event)
		if err != nil {
			t.Fatalf("transition %s: %v", event, err)
		}
	}
	return task
}
