package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Downloader contains configuration for the external media fetch tool.
type Downloader struct {
	Binary         string `toml:"binary"`
	Format         string `toml:"format"`
	Proxy          string `toml:"proxy"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VAD contains configuration for the voice activity detection service and
// the audio chunking that feeds it.
type VAD struct {
	BaseURL             string  `toml:"base_url"`
	APIKey              string  `toml:"api_key"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	ChunkWindowSeconds  float64 `toml:"chunk_window_seconds"`
	ChunkOverlapSeconds float64 `toml:"chunk_overlap_seconds"`
	MergeGapSeconds     float64 `toml:"merge_gap_seconds"`
	MinSegmentSeconds   float64 `toml:"min_segment_seconds"`
	MaxSegmentSeconds   float64 `toml:"max_segment_seconds"`
}

// ASR contains configuration for the speech recognition service.
type ASR struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	Language          string `toml:"language"`
	Prompt            string `toml:"prompt"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
	QuotaDelaySeconds int    `toml:"quota_delay_seconds"`
}

// Subtitles contains configuration for cue formatting and post-processing.
type Subtitles struct {
	MaxCharsPerLine    int     `toml:"max_chars_per_line"`
	MaxLinesPerCue     int     `toml:"max_lines_per_cue"`
	MinCueSeconds      float64 `toml:"min_cue_seconds"`
	DedupWindowSeconds float64 `toml:"dedup_window_seconds"`
	RemoveFillers      bool    `toml:"remove_fillers"`
	BurnIn             bool    `toml:"burn_in"`
	Translate          bool    `toml:"translate"`
}

// QC contains configuration for the subtitle quality judge.
type QC struct {
	Enabled        bool    `toml:"enabled"`
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Threshold      float64 `toml:"threshold"`
	MaxSampleItems int     `toml:"max_sample_items"`
	MaxSampleChars int     `toml:"max_sample_chars"`
}

// Enhancer contains configuration for metadata translation and tagging.
type Enhancer struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TargetLanguage string `toml:"target_language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Moderator contains configuration for the content review service.
type Moderator struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Publisher contains configuration for the upload destination.
type Publisher struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	ChannelID      string `toml:"channel_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Monitor contains configuration for periodic source channel polling. When
// enabled, new uploads on the watched channels are queued automatically.
type Monitor struct {
	Enabled            bool     `toml:"enabled"`
	BaseURL            string   `toml:"base_url"`
	APIKey             string   `toml:"api_key"`
	Channels           []string `toml:"channels"`
	IntervalMinutes    int      `toml:"interval_minutes"`
	MaxPerPoll         int      `toml:"max_per_poll"`
	MinDurationSeconds int      `toml:"min_duration_seconds"`
	MaxDurationSeconds int      `toml:"max_duration_seconds"`
}

// Lanes contains concurrency lane capacities.
type Lanes struct {
	Processing int `toml:"processing"`
	Upload     int `toml:"upload"`
}

// Workflow contains daemon timing and interval configuration.
type Workflow struct {
	QueuePollInterval     int `toml:"queue_poll_interval"`
	ErrorRetryInterval    int `toml:"error_retry_interval"`
	HeartbeatInterval     int `toml:"heartbeat_interval"`
	HeartbeatTimeout      int `toml:"heartbeat_timeout"`
	QuotaRetryInterval    int `toml:"quota_retry_interval"`
	ScratchRetentionHours int `toml:"scratch_retention_hours"`
}

// Notifications contains webhook push notification configuration.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	Topic          string `toml:"topic"`
	RequestTimeout int    `toml:"request_timeout"`
	QueueEvents    bool   `toml:"queue_events"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for conveyor.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Downloader: external fetch binary settings
//   - VAD: voice activity detection service and audio chunking
//   - ASR: speech recognition service and retry budget
//   - Subtitles: cue formatting and post-processing
//   - QC: subtitle quality judge and sampling budgets
//   - Enhancer: metadata translation and tagging service
//   - Moderator: content review service
//   - Publisher: upload destination
//   - Monitor: automatic source channel polling
//   - Lanes: concurrency lane capacities
//   - Workflow: daemon polling intervals and timeouts
//   - Notifications: webhook push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Downloader    Downloader    `toml:"downloader"`
	VAD           VAD           `toml:"vad"`
	ASR           ASR           `toml:"asr"`
	Subtitles     Subtitles     `toml:"subtitles"`
	QC            QC            `toml:"qc"`
	Enhancer      Enhancer      `toml:"enhancer"`
	Moderator     Moderator     `toml:"moderator"`
	Publisher     Publisher     `toml:"publisher"`
	Monitor       Monitor       `toml:"monitor"`
	Lanes         Lanes         `toml:"lanes"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/conveyor/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/conveyor/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("conveyor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction
// and subtitle burn-in.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
