package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
)

// cancelledClass marks tasks failed by operator cancellation rather than a
// collaborator error.
const cancelledClass = "cancelled"

// runTask drives the task through the remaining stages of its lane while
// the calling worker holds the lane slot. The task enters already
// transitioned into defs[startIdx]'s active status.
func (m *Manager) runTask(ctx context.Context, task *queue.Task, defs []StageDef, startIdx int) {
	ctx = services.WithTaskID(ctx, task.ID)
	stopHeartbeat := m.startHeartbeat(ctx, task.ID)
	defer stopHeartbeat()

	for i := startIdx; i < len(defs); i++ {
		def := defs[i]
		if i > startIdx {
			next, err := m.store.Transition(ctx, task.ID, def.Start)
			if err != nil {
				logging.WithContext(ctx, m.logger).Error("stage transition failed",
					logging.Error(err), logging.String(logging.FieldStage, def.Name))
				return
			}
			task = next
			m.publish(task, def.Name, "stage started")
		}

		// Each stage run gets its own correlation id so collaborator calls
		// can be traced end to end.
		stageCtx := services.WithRequestID(services.WithStage(ctx, def.Name), uuid.NewString())
		logger := logging.WithContext(stageCtx, m.logger)

		if m.cancelled(stageCtx, task.ID) {
			m.failTask(ctx, task, def.Name, 0, cancelledClass, "cancellation requested")
			return
		}

		logger.Info("stage running")
		if err := def.Handler.Prepare(stageCtx, task); err != nil {
			details := services.Details(err)
			m.failTask(ctx, task, def.Name, 1, string(details.Class), details.Message)
			return
		}

		attempts, err := m.executeWithRetry(stageCtx, def, task)
		if bumpErr := recordRetries(task, def.Name, attempts); bumpErr != nil {
			logger.Warn("record retry counts failed", logging.Error(bumpErr))
		}
		if err != nil {
			details := services.Details(err)
			m.failTask(ctx, task, def.Name, attempts, string(details.Class), details.Message)
			return
		}

		// An external call may have finished after a cancel arrived; the
		// result is discarded rather than persisted.
		if m.cancelled(stageCtx, task.ID) {
			m.failTask(ctx, task, def.Name, attempts, cancelledClass, "cancellation requested")
			return
		}

		if err := m.store.Update(ctx, task); err != nil {
			logger.Error("persist stage results failed", logging.Error(err))
			m.failTask(ctx, task, def.Name, attempts, string(services.ClassTransient), "persist stage results: "+err.Error())
			return
		}

		doneEvent := def.Done(task)
		next, err := m.store.Transition(ctx, task.ID, doneEvent)
		if err != nil {
			logger.Error("stage completion transition failed", logging.Error(err))
			return
		}
		task = next
		m.publish(task, def.Name, "stage complete")
		logger.Info("stage complete", logging.String("status", string(task.Status)))

		if task.Status == queue.StatusAwaitingReview {
			return
		}
	}

	if task.Status == queue.StatusCompleted {
		m.finishTask(ctx, task)
	}
}

// recordRetries tallies every attempt beyond the first on the task, so the
// stage's retry history is persisted with the run's other results. The tally
// is cumulative across operator requeues.
func recordRetries(task *queue.Task, stageName string, attempts int) error {
	for n := 1; n < attempts; n++ {
		if _, err := task.BumpRetryCount(stageName); err != nil {
			return err
		}
	}
	return nil
}

// executeWithRetry reruns a stage on retryable errors with the configured
// backoff. Collaborator-level retries (per-segment recognition, etc.) happen
// inside the handlers; this covers whole-stage transient failures.
func (m *Manager) executeWithRetry(ctx context.Context, def StageDef, task *queue.Task) (int, error) {
	return services.Retry(ctx, m.retry, func(ctx context.Context) error {
		return def.Handler.Execute(ctx, task)
	})
}

func (m *Manager) cancelled(ctx context.Context, taskID string) bool {
	requested, err := m.store.CancelRequested(ctx, taskID)
	return err == nil && requested
}

// failTask records the structured error and moves the task to failed.
func (m *Manager) failTask(ctx context.Context, task *queue.Task, stageName string, attempts int, class, message string) {
	task.ErrorStage = stageName
	task.ErrorClass = class
	task.ErrorAttempts = attempts
	task.ErrorMessage = message

	failed, err := m.store.Transition(ctx, task.ID, queue.EventFail)
	if err != nil {
		m.logger.Error("failure transition failed", logging.Error(err), logging.String(logging.FieldTaskID, task.ID))
		return
	}
	task.Status = failed.Status
	if err := m.store.Update(ctx, task); err != nil {
		m.logger.Error("persist failure details failed", logging.Error(err), logging.String(logging.FieldTaskID, task.ID))
	}

	m.logger.Warn("task failed",
		logging.Alert("task_failed"),
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldStage, stageName),
		logging.String("class", class),
		logging.Int("attempts", attempts),
		logging.String("message", message),
		logging.String(logging.FieldErrorHint, retryHint(class)))
	m.publish(task, stageName, "task failed: "+message)
}

// retryHint names the operator action that matches the failure class.
func retryHint(class string) string {
	switch class {
	case string(services.ClassTransient):
		return "requeue with 'conveyor queue retry'"
	case string(services.ClassQuota):
		return "requeued automatically once the quota window passes"
	case cancelledClass:
		return "cancelled by operator request"
	default:
		return "inspect with 'conveyor queue show' before retrying"
	}
}

// finishTask exports keepable artifacts once a task completes.
func (m *Manager) finishTask(ctx context.Context, task *queue.Task) {
	if m.staging == nil {
		return
	}
	if err := m.staging.ExportArtifacts(task); err != nil {
		m.logger.Warn("artifact export failed", logging.Error(err), logging.String(logging.FieldTaskID, task.ID))
	}
}

// startHeartbeat keeps the task's liveness column fresh while a worker owns
// it, so a crashed daemon's tasks can be reclaimed.
func (m *Manager) startHeartbeat(ctx context.Context, taskID string) func() {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.store.UpdateHeartbeat(ctx, taskID)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(ctx, taskID); err != nil {
					m.logger.Warn("heartbeat update failed", logging.Error(err), logging.String(logging.FieldTaskID, taskID))
				}
			}
		}
	}()
	return func() {
		close(done)
		m.store.ClearHeartbeat(context.WithoutCancel(ctx), taskID)
	}
}
