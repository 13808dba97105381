package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateQC(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateLanes(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.VAD.ChunkOverlapSeconds >= c.VAD.ChunkWindowSeconds {
		return errors.New("vad.chunk_overlap_seconds must be smaller than vad.chunk_window_seconds")
	}
	if c.VAD.MinSegmentSeconds > c.VAD.MaxSegmentSeconds {
		return errors.New("vad.min_segment_seconds must not exceed vad.max_segment_seconds")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.MaxLinesPerCue > 4 {
		return errors.New("subtitles.max_lines_per_cue must be 4 or fewer")
	}
	return nil
}

func (c *Config) validateQC() error {
	if c.QC.Threshold < 0 || c.QC.Threshold > 1 {
		return errors.New("qc.threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if !c.Monitor.Enabled {
		return nil
	}
	if c.Monitor.BaseURL == "" {
		return errors.New("monitor.base_url is required when the monitor is enabled")
	}
	if len(c.Monitor.Channels) == 0 {
		return errors.New("monitor.channels must name at least one channel when the monitor is enabled")
	}
	if c.Monitor.MaxDurationSeconds > 0 && c.Monitor.MinDurationSeconds > c.Monitor.MaxDurationSeconds {
		return errors.New("monitor.min_duration_seconds must not exceed monitor.max_duration_seconds")
	}
	return nil
}

func (c *Config) validateLanes() error {
	return ensurePositiveMap(map[string]int{
		"lanes.processing": c.Lanes.Processing,
		"lanes.upload":     c.Lanes.Upload,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.quota_retry_interval":    c.Workflow.QuotaRetryInterval,
		"workflow.scratch_retention_hours": c.Workflow.ScratchRetentionHours,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
		"downloader.timeout_seconds":       c.Downloader.TimeoutSeconds,
		"asr.max_attempts":                 c.ASR.MaxAttempts,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
