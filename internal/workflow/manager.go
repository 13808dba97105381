package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/lanes"
	"conveyor/internal/logging"
	"conveyor/internal/notifications"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/stage"
	"conveyor/internal/staging"
)

// Manager runs a fixed worker pool per lane. Each worker holds one lane
// slot while it drives a claimed task through that lane's stage sequence.
type Manager struct {
	cfg     *config.Config
	store   *queue.Store
	lanes   *lanes.Controller
	bus     *notifications.Bus
	staging *staging.Manager
	factory StageFactory
	logger  *slog.Logger

	poll  time.Duration
	retry services.RetryPolicy

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager constructs a manager. The bus and staging manager may be nil.
func NewManager(cfg *config.Config, store *queue.Store, controller *lanes.Controller, bus *notifications.Bus, stagingMgr *staging.Manager, factory StageFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		lanes:   controller,
		bus:     bus,
		staging: stagingMgr,
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		poll:    poll,
		retry: services.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
			QuotaDelay:  time.Duration(cfg.Workflow.QuotaRetryInterval) * time.Second,
		},
		stop: make(chan struct{}),
	}
}

// Start launches the lane workers.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.lanes.Capacity(queue.LaneProcessing); i++ {
		m.wg.Add(1)
		go m.worker(ctx, queue.LaneProcessing)
	}
	for i := 0; i < m.lanes.Capacity(queue.LaneUpload); i++ {
		m.wg.Add(1)
		go m.worker(ctx, queue.LaneUpload)
	}
	m.logger.Info("workflow started",
		logging.Int("processing_workers", m.lanes.Capacity(queue.LaneProcessing)),
		logging.Int("upload_workers", m.lanes.Capacity(queue.LaneUpload)),
		logging.Duration("poll_interval", m.poll))
}

// Stop signals the workers and waits for in-flight tasks to finish their
// current stage sequence.
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// LaneUsage is a point-in-time view of one lane's slot occupancy.
type LaneUsage struct {
	Lane     queue.Lane
	InUse    int
	Capacity int
}

// LaneUsage reports slot occupancy for both lanes.
func (m *Manager) LaneUsage() []LaneUsage {
	usage := make([]LaneUsage, 0, 2)
	for _, lane := range []queue.Lane{queue.LaneProcessing, queue.LaneUpload} {
		usage = append(usage, LaneUsage{
			Lane:     lane,
			InUse:    m.lanes.InUse(lane),
			Capacity: m.lanes.Capacity(lane),
		})
	}
	return usage
}

// HealthChecks reports the readiness of every stage handler.
func (m *Manager) HealthChecks(ctx context.Context) []stage.Health {
	set := m.factory(m.cfg.Snapshot())
	var checks []stage.Health
	for _, def := range append(set.Processing, set.Upload...) {
		checks = append(checks, def.Handler.HealthCheck(ctx))
	}
	return checks
}

func (m *Manager) worker(ctx context.Context, lane queue.Lane) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !m.runOnce(ctx, lane) {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(m.poll):
			}
		}
	}
}

// runOnce claims and runs at most one task. It reports whether any work was
// found, so idle workers can back off.
func (m *Manager) runOnce(ctx context.Context, lane queue.Lane) bool {
	if err := m.lanes.Acquire(ctx, lane); err != nil {
		return false
	}
	defer m.lanes.Release(lane)
	ctx = services.WithLane(ctx, string(lane))

	snap := m.cfg.Snapshot()
	set := m.factory(snap)
	defs := set.Processing
	if lane == queue.LaneUpload {
		defs = set.Upload
	}

	task, startIdx, ok := m.claim(ctx, defs)
	if !ok {
		return false
	}
	m.runTask(ctx, task, defs, startIdx)
	return true
}

// claim picks the oldest eligible task and moves it into the first stage's
// active status. A racing worker losing the transition just tries again on
// its next poll.
func (m *Manager) claim(ctx context.Context, defs []StageDef) (*queue.Task, int, bool) {
	entries := make([]queue.Status, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, def.Entry)
	}

	candidate, err := m.store.NextForStatuses(ctx, entries...)
	if err != nil {
		m.logger.Error("queue poll failed", logging.Error(err))
		return nil, 0, false
	}
	if candidate == nil {
		return nil, 0, false
	}

	startIdx := -1
	for i, def := range defs {
		if def.Entry == candidate.Status {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, 0, false
	}

	task, err := m.store.Transition(ctx, candidate.ID, defs[startIdx].Start)
	if err != nil {
		if errors.Is(err, queue.ErrTransitionConflict) || errors.Is(err, queue.ErrInvalidTransition) {
			return nil, 0, false
		}
		m.logger.Error("claim transition failed", logging.Error(err), logging.String(logging.FieldTaskID, candidate.ID))
		return nil, 0, false
	}
	m.publish(task, defs[startIdx].Name, "stage started")
	return task, startIdx, true
}

func (m *Manager) publish(task *queue.Task, stageName, summary string) {
	if m.bus == nil {
		return
	}
	if task.ProgressMessage != "" {
		summary = task.ProgressMessage
	}
	m.bus.Publish(notifications.Event{
		TaskID:  task.ID,
		Status:  task.Status,
		Stage:   stageName,
		Summary: summary,
	})
}
