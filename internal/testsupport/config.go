package testsupport

import (
	"path/filepath"
	"testing"

	"conveyor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithLaneCapacities overrides the concurrency lane capacities.
func WithLaneCapacities(processing, upload int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Lanes.Processing = processing
		cfg.Lanes.Upload = upload
	}
}

// WithQCThreshold overrides the subtitle quality threshold.
func WithQCThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.QC.Threshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
