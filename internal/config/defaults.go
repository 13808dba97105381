package config

const (
	defaultStagingDir = "~/.local/share/conveyor/staging"
	defaultOutputDir  = "~/.local/share/conveyor/output"
	defaultLogDir     = "~/.local/share/conveyor/logs"

	defaultDownloaderBinary  = "yt-dlp"
	defaultDownloaderFormat  = "bv*+ba/b"
	defaultDownloaderTimeout = 1800

	defaultVADTimeout       = 60
	defaultChunkWindow      = 25.0
	defaultChunkOverlap     = 0.2
	defaultMergeGap         = 1.0
	defaultMinSegment       = 1.0
	defaultMaxSegment       = 29.0
	defaultASRTimeout       = 120
	defaultASRMaxAttempts   = 3
	defaultASRRetryDelay    = 2
	defaultASRQuotaDelay    = 30
	defaultMaxCharsPerLine  = 42
	defaultMaxLinesPerCue   = 2
	defaultMinCueSeconds    = 0.8
	defaultDedupWindow      = 5.0
	defaultQCTimeout        = 60
	defaultQCThreshold      = 0.6
	defaultQCSampleItems    = 12
	defaultQCSampleChars    = 2000
	defaultEnhancerTimeout  = 90
	defaultEnhancerLanguage = "zh"
	defaultModeratorTimeout = 60
	defaultPublisherTimeout = 3600

	defaultMonitorInterval   = 30
	defaultMonitorMaxPerPoll = 5

	defaultProcessingLaneCapacity = 3
	defaultUploadLaneCapacity     = 1

	defaultQueuePollInterval     = 5
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
	defaultQuotaRetryInterval    = 300
	defaultScratchRetentionHours = 48

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Downloader: Downloader{
			Binary:         defaultDownloaderBinary,
			Format:         defaultDownloaderFormat,
			TimeoutSeconds: defaultDownloaderTimeout,
		},
		VAD: VAD{
			TimeoutSeconds:      defaultVADTimeout,
			ChunkWindowSeconds:  defaultChunkWindow,
			ChunkOverlapSeconds: defaultChunkOverlap,
			MergeGapSeconds:     defaultMergeGap,
			MinSegmentSeconds:   defaultMinSegment,
			MaxSegmentSeconds:   defaultMaxSegment,
		},
		ASR: ASR{
			TimeoutSeconds:    defaultASRTimeout,
			MaxAttempts:       defaultASRMaxAttempts,
			RetryDelaySeconds: defaultASRRetryDelay,
			QuotaDelaySeconds: defaultASRQuotaDelay,
		},
		Subtitles: Subtitles{
			MaxCharsPerLine:    defaultMaxCharsPerLine,
			MaxLinesPerCue:     defaultMaxLinesPerCue,
			MinCueSeconds:      defaultMinCueSeconds,
			DedupWindowSeconds: defaultDedupWindow,
			RemoveFillers:      true,
			BurnIn:             true,
		},
		QC: QC{
			Enabled:        true,
			TimeoutSeconds: defaultQCTimeout,
			Threshold:      defaultQCThreshold,
			MaxSampleItems: defaultQCSampleItems,
			MaxSampleChars: defaultQCSampleChars,
		},
		Enhancer: Enhancer{
			TargetLanguage: defaultEnhancerLanguage,
			TimeoutSeconds: defaultEnhancerTimeout,
		},
		Moderator: Moderator{
			Enabled:        true,
			TimeoutSeconds: defaultModeratorTimeout,
		},
		Publisher: Publisher{
			TimeoutSeconds: defaultPublisherTimeout,
		},
		Monitor: Monitor{
			IntervalMinutes: defaultMonitorInterval,
			MaxPerPoll:      defaultMonitorMaxPerPoll,
		},
		Lanes: Lanes{
			Processing: defaultProcessingLaneCapacity,
			Upload:     defaultUploadLaneCapacity,
		},
		Workflow: Workflow{
			QueuePollInterval:     defaultQueuePollInterval,
			ErrorRetryInterval:    defaultErrorRetryInterval,
			HeartbeatInterval:     defaultHeartbeatInterval,
			HeartbeatTimeout:      defaultHeartbeatTimeout,
			QuotaRetryInterval:    defaultQuotaRetryInterval,
			ScratchRetentionHours: defaultScratchRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			QueueEvents:    true,
			Review:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
