package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownloader()
	c.normalizeVAD()
	c.normalizeASR()
	c.normalizeSubtitles()
	c.normalizeQC()
	c.normalizeEnhancer()
	c.normalizeModerator()
	c.normalizePublisher()
	c.normalizeMonitor()
	c.normalizeLanes()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownloader() {
	c.Downloader.Binary = strings.TrimSpace(c.Downloader.Binary)
	if c.Downloader.Binary == "" {
		c.Downloader.Binary = defaultDownloaderBinary
	}
	c.Downloader.Format = strings.TrimSpace(c.Downloader.Format)
	if c.Downloader.Format == "" {
		c.Downloader.Format = defaultDownloaderFormat
	}
	c.Downloader.Proxy = strings.TrimSpace(c.Downloader.Proxy)
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = defaultDownloaderTimeout
	}
}

func (c *Config) normalizeVAD() {
	c.VAD.BaseURL = strings.TrimSpace(c.VAD.BaseURL)
	c.VAD.APIKey = strings.TrimSpace(c.VAD.APIKey)
	if c.VAD.APIKey == "" {
		if value, ok := os.LookupEnv("CONVEYOR_VAD_API_KEY"); ok {
			c.VAD.APIKey = strings.TrimSpace(value)
		}
	}
	if c.VAD.TimeoutSeconds <= 0 {
		c.VAD.TimeoutSeconds = defaultVADTimeout
	}
	if c.VAD.ChunkWindowSeconds <= 0 {
		c.VAD.ChunkWindowSeconds = defaultChunkWindow
	}
	if c.VAD.ChunkOverlapSeconds < 0 {
		c.VAD.ChunkOverlapSeconds = defaultChunkOverlap
	}
	if c.VAD.MergeGapSeconds < 0 {
		c.VAD.MergeGapSeconds = defaultMergeGap
	}
	if c.VAD.MinSegmentSeconds <= 0 {
		c.VAD.MinSegmentSeconds = defaultMinSegment
	}
	if c.VAD.MaxSegmentSeconds <= 0 {
		c.VAD.MaxSegmentSeconds = defaultMaxSegment
	}
}

func (c *Config) normalizeASR() {
	c.ASR.BaseURL = strings.TrimSpace(c.ASR.BaseURL)
	c.ASR.APIKey = strings.TrimSpace(c.ASR.APIKey)
	if c.ASR.APIKey == "" {
		if value, ok := os.LookupEnv("CONVEYOR_ASR_API_KEY"); ok {
			c.ASR.APIKey = strings.TrimSpace(value)
		}
	}
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)
	c.ASR.Language = strings.ToLower(strings.TrimSpace(c.ASR.Language))
	if c.ASR.TimeoutSeconds <= 0 {
		c.ASR.TimeoutSeconds = defaultASRTimeout
	}
	if c.ASR.MaxAttempts <= 0 {
		c.ASR.MaxAttempts = defaultASRMaxAttempts
	}
	if c.ASR.RetryDelaySeconds <= 0 {
		c.ASR.RetryDelaySeconds = defaultASRRetryDelay
	}
	if c.ASR.QuotaDelaySeconds <= 0 {
		c.ASR.QuotaDelaySeconds = defaultASRQuotaDelay
	}
}

func (c *Config) normalizeSubtitles() {
	if c.Subtitles.MaxCharsPerLine <= 0 {
		c.Subtitles.MaxCharsPerLine = defaultMaxCharsPerLine
	}
	if c.Subtitles.MaxLinesPerCue <= 0 {
		c.Subtitles.MaxLinesPerCue = defaultMaxLinesPerCue
	}
	if c.Subtitles.MinCueSeconds <= 0 {
		c.Subtitles.MinCueSeconds = defaultMinCueSeconds
	}
	if c.Subtitles.DedupWindowSeconds < 0 {
		c.Subtitles.DedupWindowSeconds = defaultDedupWindow
	}
}

func (c *Config) normalizeQC() {
	c.QC.BaseURL = strings.TrimSpace(c.QC.BaseURL)
	c.QC.APIKey = strings.TrimSpace(c.QC.APIKey)
	c.QC.Model = strings.TrimSpace(c.QC.Model)
	if c.QC.TimeoutSeconds <= 0 {
		c.QC.TimeoutSeconds = defaultQCTimeout
	}
	if c.QC.Threshold <= 0 {
		c.QC.Threshold = defaultQCThreshold
	}
	if c.QC.MaxSampleItems <= 0 {
		c.QC.MaxSampleItems = defaultQCSampleItems
	}
	if c.QC.MaxSampleChars <= 0 {
		c.QC.MaxSampleChars = defaultQCSampleChars
	}
}

func (c *Config) normalizeEnhancer() {
	c.Enhancer.BaseURL = strings.TrimSpace(c.Enhancer.BaseURL)
	c.Enhancer.APIKey = strings.TrimSpace(c.Enhancer.APIKey)
	if c.Enhancer.APIKey == "" {
		if value, ok := os.LookupEnv("CONVEYOR_ENHANCER_API_KEY"); ok {
			c.Enhancer.APIKey = strings.TrimSpace(value)
		}
	}
	c.Enhancer.Model = strings.TrimSpace(c.Enhancer.Model)
	c.Enhancer.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Enhancer.TargetLanguage))
	if c.Enhancer.TargetLanguage == "" {
		c.Enhancer.TargetLanguage = defaultEnhancerLanguage
	}
	if c.Enhancer.TimeoutSeconds <= 0 {
		c.Enhancer.TimeoutSeconds = defaultEnhancerTimeout
	}
}

func (c *Config) normalizeModerator() {
	c.Moderator.BaseURL = strings.TrimSpace(c.Moderator.BaseURL)
	c.Moderator.APIKey = strings.TrimSpace(c.Moderator.APIKey)
	if c.Moderator.TimeoutSeconds <= 0 {
		c.Moderator.TimeoutSeconds = defaultModeratorTimeout
	}
}

func (c *Config) normalizePublisher() {
	c.Publisher.BaseURL = strings.TrimSpace(c.Publisher.BaseURL)
	c.Publisher.APIToken = strings.TrimSpace(c.Publisher.APIToken)
	if c.Publisher.APIToken == "" {
		if value, ok := os.LookupEnv("CONVEYOR_PUBLISHER_TOKEN"); ok {
			c.Publisher.APIToken = strings.TrimSpace(value)
		}
	}
	c.Publisher.ChannelID = strings.TrimSpace(c.Publisher.ChannelID)
	if c.Publisher.TimeoutSeconds <= 0 {
		c.Publisher.TimeoutSeconds = defaultPublisherTimeout
	}
}

func (c *Config) normalizeMonitor() {
	c.Monitor.BaseURL = strings.TrimSpace(c.Monitor.BaseURL)
	c.Monitor.APIKey = strings.TrimSpace(c.Monitor.APIKey)
	if c.Monitor.APIKey == "" {
		if value, ok := os.LookupEnv("CONVEYOR_MONITOR_API_KEY"); ok {
			c.Monitor.APIKey = strings.TrimSpace(value)
		}
	}
	channels := c.Monitor.Channels[:0]
	for _, channel := range c.Monitor.Channels {
		channel = strings.TrimSpace(channel)
		if channel != "" {
			channels = append(channels, channel)
		}
	}
	c.Monitor.Channels = channels
	if c.Monitor.IntervalMinutes <= 0 {
		c.Monitor.IntervalMinutes = defaultMonitorInterval
	}
	if c.Monitor.MaxPerPoll <= 0 {
		c.Monitor.MaxPerPoll = defaultMonitorMaxPerPoll
	}
	if c.Monitor.MinDurationSeconds < 0 {
		c.Monitor.MinDurationSeconds = 0
	}
	if c.Monitor.MaxDurationSeconds < 0 {
		c.Monitor.MaxDurationSeconds = 0
	}
}

func (c *Config) normalizeLanes() {
	if c.Lanes.Processing <= 0 {
		c.Lanes.Processing = defaultProcessingLaneCapacity
	}
	if c.Lanes.Upload <= 0 {
		c.Lanes.Upload = defaultUploadLaneCapacity
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	c.Notifications.Topic = strings.TrimSpace(c.Notifications.Topic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
