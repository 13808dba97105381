package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/fileutil"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
)

// Manager owns the staging tree and the exported output directory.
type Manager struct {
	stagingDir string
	outputDir  string
	logger     *slog.Logger
}

// NewManager constructs a manager from configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		stagingDir: cfg.Paths.StagingDir,
		outputDir:  cfg.Paths.OutputDir,
		logger:     logger,
	}
}

// TaskDir returns the task's scratch directory, creating it on first use.
func (m *Manager) TaskDir(taskID string) (string, error) {
	dir := filepath.Join(m.stagingDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task directory: %w", err)
	}
	return dir, nil
}

// Remove deletes the task's scratch directory.
func (m *Manager) Remove(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("empty task id")
	}
	if err := os.RemoveAll(filepath.Join(m.stagingDir, taskID)); err != nil {
		return fmt.Errorf("remove task directory: %w", err)
	}
	return nil
}

// ExportArtifacts copies the task's keepable outputs into the output
// directory: the subtitle file and, when burn-in ran, the burned media.
func (m *Manager) ExportArtifacts(task *queue.Task) error {
	if task.SubtitlePath == "" && task.BurnedMediaPath == "" {
		return nil
	}
	destDir := filepath.Join(m.outputDir, task.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, src := range []string{task.SubtitlePath, task.BurnedMediaPath} {
		if src == "" {
			continue
		}
		if err := fileutil.CopyVerified(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
			return err
		}
	}
	return nil
}

// CleanupStale removes scratch directories older than the retention window.
// The active predicate protects directories of tasks still in flight.
func (m *Manager) CleanupStale(retention time.Duration, active func(taskID string) bool) (int, error) {
	entries, err := os.ReadDir(m.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if active != nil && active(entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.stagingDir, entry.Name())); err != nil {
			m.logger.Warn("failed to remove stale scratch directory",
				logging.Error(err),
				logging.String("dir", entry.Name()))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("removed stale scratch directories", logging.Int("count", removed))
	}
	return removed, nil
}

