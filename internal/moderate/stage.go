package moderate

import (
	"context"
	"log/slog"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/services/moderator"
	"conveyor/internal/stage"
)

// Reviewer is the content review collaborator. Satisfied by
// *moderator.Client.
type Reviewer interface {
	Review(ctx context.Context, req moderator.Request) (moderator.Decision, error)
}

// Stage submits the translated metadata for review. A failing verdict does
// not fail the task; findings are stored and the workflow parks the task
// for manual review. A passing verdict always leaves the task with zero
// findings, so Held can read the outcome back off the task.
type Stage struct {
	reviewer Reviewer
	snap     config.Snapshot
	logger   *slog.Logger
}

// NewStage wires the moderator into a stage handler.
func NewStage(reviewer Reviewer, snap config.Snapshot, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{reviewer: reviewer, snap: snap, logger: logger}
}

// Prepare verifies the enhance stage produced metadata to review.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	meta, err := task.Metadata()
	if err != nil {
		return services.Wrap(services.ErrValidation, "moderate", "prepare", "read metadata", err)
	}
	if meta.TranslatedTitle == "" {
		return services.Wrap(services.ErrValidation, "moderate", "prepare", "task has no translated metadata", nil)
	}
	return nil
}

// Execute reviews the task's metadata and records any findings. Moderation
// being disabled counts as a pass.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	if !s.snap.ModerationEnabled {
		if err := task.SetFindings(nil); err != nil {
			return services.Wrap(services.ErrValidation, "moderate", "execute", "clear findings", err)
		}
		task.SetProgress("moderate", "moderation disabled, auto-approved", 100)
		return nil
	}

	meta, err := task.Metadata()
	if err != nil {
		return services.Wrap(services.ErrValidation, "moderate", "execute", "read metadata", err)
	}

	task.SetProgress("moderate", "reviewing content", 30)
	decision, err := s.reviewer.Review(ctx, moderator.Request{
		Title:       meta.TranslatedTitle,
		Description: meta.TranslatedDescription,
		Tags:        meta.Tags,
	})
	if err != nil {
		return err
	}

	var findings []queue.Finding
	if !decision.Pass {
		findings = make([]queue.Finding, 0, len(decision.Findings))
		for _, f := range decision.Findings {
			findings = append(findings, queue.Finding{Field: f.Field, Term: f.Term, Severity: f.Severity})
		}
	}
	if err := task.SetFindings(findings); err != nil {
		return services.Wrap(services.ErrValidation, "moderate", "execute", "store findings", err)
	}

	if !decision.Pass {
		s.logger.Warn("content flagged for manual review",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Int("findings", len(findings)))
		task.SetProgress("moderate", "held for manual review", 100)
		return nil
	}
	task.SetProgress("moderate", "review passed", 100)
	return nil
}

// Held reports whether the review left the task flagged. Valid after
// Execute returns nil.
func Held(task *queue.Task) bool {
	findings, err := task.Findings()
	return err == nil && len(findings) > 0
}

// HealthCheck reports readiness; the endpoint is exercised lazily.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if !s.snap.ModerationEnabled {
		return stage.Healthy("moderate (disabled)")
	}
	return stage.Healthy("moderate")
}
