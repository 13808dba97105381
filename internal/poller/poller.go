package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/staging"
)

// Job is a named periodic maintenance action.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Poller runs each job on its own ticker until stopped.
type Poller struct {
	jobs   []Job
	logger *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a poller over the given jobs.
func New(logger *slog.Logger, jobs ...Job) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{
		jobs:   jobs,
		logger: logging.NewComponentLogger(logger, "poller"),
		stop:   make(chan struct{}),
	}
}

// Start launches one goroutine per job.
func (p *Poller) Start(ctx context.Context) {
	for _, job := range p.jobs {
		p.wg.Add(1)
		go p.loop(ctx, job)
	}
	p.logger.Info("maintenance jobs started", logging.Int("jobs", len(p.jobs)))
}

// Stop signals the job loops and waits for any in-flight run to finish.
func (p *Poller) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, job Job) {
	defer p.wg.Done()

	interval := job.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				p.logger.Warn("maintenance job failed",
					logging.String("job", job.Name),
					logging.Error(err))
			}
		}
	}
}

// MaintenanceJobs builds the standard daemon job set: stale in-flight
// reclamation, deferred quota retries, and scratch directory cleanup.
func MaintenanceJobs(cfg *config.Config, store *queue.Store, scratch *staging.Manager, logger *slog.Logger) []Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "poller")

	jobs := []Job{
		ReclaimJob(cfg, store, logger),
		QuotaRetryJob(cfg, store, logger),
	}
	if scratch != nil {
		jobs = append(jobs, ScratchCleanupJob(cfg, store, scratch, logger))
	}
	return jobs
}

// ReclaimJob returns in-flight tasks whose heartbeats expired back to the
// start of their stage, so a crashed worker's tasks get picked up again.
func ReclaimJob(cfg *config.Config, store *queue.Store, logger *slog.Logger) Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second
	interval := timeout / 2
	return Job{
		Name:     "reclaim_stale",
		Interval: interval,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-timeout)
			reclaimed, err := store.ReclaimStaleProcessing(ctx, cutoff)
			if err != nil {
				return err
			}
			if reclaimed > 0 {
				logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
			}
			return nil
		},
	}
}

// QuotaRetryJob requeues tasks that failed on an exhausted quota once the
// configured wait has passed. Other failure classes stay parked for the
// operator.
func QuotaRetryJob(cfg *config.Config, store *queue.Store, logger *slog.Logger) Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	wait := time.Duration(cfg.Workflow.QuotaRetryInterval) * time.Second
	return Job{
		Name:     "quota_retry",
		Interval: wait,
		Run: func(ctx context.Context) error {
			failed, err := store.TasksByStatus(ctx, queue.StatusFailed)
			if err != nil {
				return err
			}

			var due []string
			for _, task := range failed {
				if task.ErrorClass != string(services.ClassQuota) {
					continue
				}
				if time.Since(task.UpdatedAt) < wait {
					continue
				}
				due = append(due, task.ID)
			}
			if len(due) == 0 {
				return nil
			}

			retried, err := store.RetryFailed(ctx, due...)
			if err != nil {
				return err
			}
			logger.Info("requeued quota-deferred tasks", logging.Int64("count", retried))
			return nil
		},
	}
}

// ScratchCleanupJob removes staging directories past the retention window.
// Directories belonging to tasks that could still run (anything short of
// completed) are kept regardless of age.
func ScratchCleanupJob(cfg *config.Config, store *queue.Store, scratch *staging.Manager, logger *slog.Logger) Job {
	retention := time.Duration(cfg.Workflow.ScratchRetentionHours) * time.Hour
	return Job{
		Name:     "scratch_cleanup",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			active, err := activeTaskFilter(ctx, store)
			if err != nil {
				return err
			}
			_, err = scratch.CleanupStale(retention, active)
			return err
		},
	}
}

func activeTaskFilter(ctx context.Context, store *queue.Store) (func(taskID string) bool, error) {
	tasks, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if task.Status != queue.StatusCompleted {
			keep[task.ID] = struct{}{}
		}
	}
	return func(taskID string) bool {
		_, ok := keep[taskID]
		return ok
	}, nil
}
