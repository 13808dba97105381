package publish

import (
	"context"
	"log/slog"
	"os"

	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/services/publisher"
	"conveyor/internal/stage"
)

// Uploader is the publishing collaborator. Satisfied by *publisher.Client.
type Uploader interface {
	Publish(ctx context.Context, req publisher.Request) (string, error)
}

// Stage uploads the task's media under the upload lane. Burned-in media is
// preferred; degraded subtitles fall back to the original download.
type Stage struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewStage wires the publisher into a stage handler.
func NewStage(uploader Uploader, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{uploader: uploader, logger: logger}
}

// Prepare verifies the upload inputs exist.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	path := uploadPath(task)
	if path == "" {
		return services.Wrap(services.ErrValidation, "upload", "prepare", "task has no media to upload", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return services.Wrap(services.ErrNotFound, "upload", "prepare", "upload media missing", err)
	}
	meta, err := task.Metadata()
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "prepare", "read metadata", err)
	}
	if meta.TranslatedTitle == "" {
		return services.Wrap(services.ErrValidation, "upload", "prepare", "task has no translated metadata", nil)
	}
	return nil
}

// Execute uploads the media and records the destination identifier.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	meta, err := task.Metadata()
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "execute", "read metadata", err)
	}

	path := uploadPath(task)
	task.SetProgress("upload", "uploading media", 10)
	externalID, err := s.uploader.Publish(ctx, publisher.Request{
		MediaPath:   path,
		Title:       meta.TranslatedTitle,
		Description: meta.TranslatedDescription,
		Tags:        meta.Tags,
		Category:    meta.Category,
	})
	if err != nil {
		return err
	}

	task.ExternalID = externalID
	task.SetProgress("upload", "upload complete", 100)
	s.logger.Info("media published",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("external_id", externalID))
	return nil
}

// HealthCheck reports readiness; the endpoint is exercised lazily.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("upload")
}

// uploadPath picks the media file to publish. Degraded subtitle runs never
// produce burned media, so the original download goes out unmodified.
func uploadPath(task *queue.Task) string {
	if task.BurnedMediaPath != "" {
		return task.BurnedMediaPath
	}
	return task.MediaPath
}
