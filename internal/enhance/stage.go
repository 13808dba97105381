package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/services/enhancer"
	"conveyor/internal/stage"
	"conveyor/internal/subtitle"
)

// Translator is the enhancement collaborator. Satisfied by
// *enhancer.Client.
type Translator interface {
	Enhance(ctx context.Context, req enhancer.Request) (enhancer.Result, error)
	TranslateLines(ctx context.Context, lines []string, targetLanguage string) ([]string, error)
}

// Stage produces the translated title, description, tags, and category used
// at publish time, and optionally rewrites the generated subtitles into the
// target language.
type Stage struct {
	translator Translator
	snap       config.Snapshot
	logger     *slog.Logger
}

// NewStage wires the enhancer into a stage handler.
func NewStage(translator Translator, snap config.Snapshot, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{translator: translator, snap: snap, logger: logger}
}

// Prepare checks that the fetch stage left a usable title.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return services.Wrap(services.ErrValidation, "enhance", "prepare", "task has no title to enhance", nil)
	}
	return nil
}

// Execute calls the enhancer and stores the result on the task.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	task.SetProgress("enhance", "translating metadata", 20)

	result, err := s.translator.Enhance(ctx, enhancer.Request{
		Title:          task.Title,
		Description:    task.Description,
		TargetLanguage: s.snap.TargetLanguage,
	})
	if err != nil {
		return err
	}

	meta := queue.Metadata{
		TranslatedTitle:       result.Title,
		TranslatedDescription: result.Description,
		Tags:                  result.Tags,
		Category:              result.Category,
	}
	if err := task.SetMetadata(meta); err != nil {
		return services.Wrap(services.ErrValidation, "enhance", "execute", "store metadata", err)
	}

	if s.snap.TranslateSubtitles && task.SubtitlePath != "" {
		task.SetProgress("enhance", "translating subtitles", 60)
		if err := s.translateSubtitles(ctx, task); err != nil {
			return err
		}
	}
	task.SetProgress("enhance", "metadata translated", 100)

	s.logger.Info("metadata enhanced",
		logging.String(logging.FieldTaskID, task.ID),
		logging.Int("tags", len(result.Tags)))
	return nil
}

// translateSubtitles rewrites the generated cue text into the target
// language and points the task at the translated file. The source file is
// left in place so an operator can compare the two.
func (s *Stage) translateSubtitles(ctx context.Context, task *queue.Task) error {
	raw, err := os.ReadFile(task.SubtitlePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "enhance", "execute", "read subtitles", err)
	}
	cues := subtitle.ParseSRT(string(raw))
	if len(cues) == 0 {
		return nil
	}

	lines := make([]string, len(cues))
	for i, cue := range cues {
		lines[i] = cue.Text
	}
	translated, err := s.translator.TranslateLines(ctx, lines, s.snap.TargetLanguage)
	if err != nil {
		return err
	}
	if len(translated) != len(cues) {
		return services.Wrap(services.ErrParse, "enhance", "execute",
			fmt.Sprintf("translation returned %d lines for %d cues", len(translated), len(cues)), nil)
	}
	for i := range cues {
		cues[i].Text = translated[i]
	}

	path := translatedSubtitlePath(task.SubtitlePath, s.snap.TargetLanguage)
	if err := subtitle.WriteSRT(path, cues); err != nil {
		return services.Wrap(services.ErrTransient, "enhance", "execute", "write translated subtitles", err)
	}
	task.SubtitlePath = path

	s.logger.Info("subtitles translated",
		logging.String(logging.FieldTaskID, task.ID),
		logging.Int("cues", len(cues)))
	return nil
}

// translatedSubtitlePath inserts the language code before the extension:
// video.srt becomes video.zh.srt.
func translatedSubtitlePath(path, lang string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + lang + ext
}

// HealthCheck reports readiness; the endpoint is exercised lazily.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("enhance")
}
