package fetch

import (
	"context"
	"log/slog"
	"strings"

	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/services/downloader"
	"conveyor/internal/stage"
)

// Fetcher is the download collaborator. Satisfied by *downloader.Client.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, destDir string) (downloader.Result, error)
	HealthCheck(ctx context.Context) error
}

// Workspace provides the per-task scratch directory.
type Workspace interface {
	TaskDir(taskID string) (string, error)
}

// Stage downloads the source media into the task's workspace.
type Stage struct {
	fetcher   Fetcher
	workspace Workspace
	logger    *slog.Logger
}

// NewStage wires the downloader into a stage handler.
func NewStage(fetcher Fetcher, workspace Workspace, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{fetcher: fetcher, workspace: workspace, logger: logger}
}

// Prepare validates the source reference.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	if strings.TrimSpace(task.SourceURL) == "" {
		return services.Wrap(services.ErrValidation, "fetch", "prepare", "task has no source url", nil)
	}
	return nil
}

// Execute downloads the media and records the source metadata on the task.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	dir, err := s.workspace.TaskDir(task.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "execute", "task workspace", err)
	}

	task.SetProgress("fetch", "downloading source media", 10)
	result, err := s.fetcher.Fetch(ctx, task.SourceURL, dir)
	if err != nil {
		return err
	}

	task.MediaPath = result.MediaPath
	if task.Title == "" {
		task.Title = result.Title
	}
	if task.Description == "" {
		task.Description = result.Description
	}
	if result.DurationSeconds > 0 {
		task.DurationSeconds = result.DurationSeconds
	}
	task.SetProgress("fetch", "download complete", 100)

	s.logger.Info("source media downloaded",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("media", result.MediaPath),
		logging.Float64("duration_seconds", result.DurationSeconds))
	return nil
}

// HealthCheck reports whether the download tooling is available.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.fetcher.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("fetch", err.Error())
	}
	return stage.Healthy("fetch")
}
