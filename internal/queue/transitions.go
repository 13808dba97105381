package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event names a requested state change.
type Event string

const (
	EventStartFetch     Event = "start_fetch"
	EventFetched        Event = "fetched"
	EventStartSubtitles Event = "start_subtitles"
	EventSubtitled      Event = "subtitled"
	EventStartEnhance   Event = "start_enhance"
	EventEnhanced       Event = "enhanced"
	EventStartModerate  Event = "start_moderate"
	EventApproved       Event = "approved"
	EventHeld           Event = "held"
	EventResume         Event = "resume"
	EventBypass         Event = "bypass"
	EventStartUpload    Event = "start_upload"
	EventUploaded       Event = "uploaded"
	EventFail           Event = "fail"
	EventRetry          Event = "retry"
)

// ErrInvalidTransition indicates the requested event is not valid from the
// task's current status.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrTransitionConflict indicates the task's status changed between read and
// write, meaning another worker applied a transition first.
var ErrTransitionConflict = errors.New("transition conflict")

// transitionTable is the full validity table. fail and retry are handled
// separately because fail applies from any non-terminal status.
var transitionTable = map[Event]map[Status]Status{
	EventStartFetch:     {StatusPending: StatusDownloading},
	EventFetched:        {StatusDownloading: StatusDownloaded},
	EventStartSubtitles: {StatusDownloaded: StatusSubtitleProcessing},
	EventSubtitled:      {StatusSubtitleProcessing: StatusSubtitled},
	EventStartEnhance:   {StatusSubtitled: StatusEnhancing},
	EventEnhanced:       {StatusEnhancing: StatusEnhanced},
	EventStartModerate:  {StatusEnhanced: StatusModerating},
	EventApproved:       {StatusModerating: StatusReadyForUpload},
	EventHeld:           {StatusModerating: StatusAwaitingReview},
	EventResume:         {StatusAwaitingReview: StatusEnhanced},
	EventBypass:         {StatusAwaitingReview: StatusReadyForUpload},
	EventStartUpload:    {StatusReadyForUpload: StatusUploading},
	EventUploaded:       {StatusUploading: StatusCompleted},
	EventRetry:          {StatusFailed: StatusPending},
}

// Apply resolves the status an event leads to from the given status without
// touching storage.
func Apply(from Status, event Event) (Status, error) {
	if event == EventFail {
		if IsTerminal(from) {
			return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
		}
		return StatusFailed, nil
	}
	targets, ok := transitionTable[event]
	if !ok {
		return "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
	}
	to, ok := targets[from]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// ParseEvent converts a string into a known Event.
func ParseEvent(value string) (Event, bool) {
	normalized := Event(strings.ToLower(strings.TrimSpace(value)))
	if normalized == EventFail {
		return normalized, true
	}
	_, ok := transitionTable[normalized]
	return normalized, ok
}

// Transition applies an event to a task and persists the new status before
// returning. The per-task lock serializes in-process callers; the status
// guard on the UPDATE catches racing writers from elsewhere. On a guard miss
// the error wraps ErrTransitionConflict so claim races can be told apart from
// genuinely invalid requests.
func (s *Store) Transition(ctx context.Context, taskID string, event Event) (*Task, error) {
	unlock := s.lockTask(taskID)
	defer unlock()

	task, err := s.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("transition %s: task %s not found", event, taskID)
	}

	next, err := Apply(task.Status, event)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		next,
		now,
		taskID,
		task.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s on task %s", ErrTransitionConflict, event, taskID)
	}

	task.Status = next
	return task, nil
}

func (s *Store) lockTask(taskID string) func() {
	s.locksMu.Lock()
	lock, ok := s.taskLocks[taskID]
	if !ok {
		lock = &taskLock{}
		s.taskLocks[taskID] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.taskLocks, taskID)
		}
		s.locksMu.Unlock()
	}
}
