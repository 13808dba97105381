package config

import "time"

// Snapshot is the immutable set of pipeline knobs a task runs with. It is
// captured once when the task enters its first stage; later config reloads
// never affect tasks already in flight.
type Snapshot struct {
	ChunkWindow  time.Duration
	ChunkOverlap time.Duration
	MergeGap     time.Duration
	MinSegment   time.Duration
	MaxSegment   time.Duration

	ASRMaxAttempts int
	ASRRetryDelay  time.Duration
	ASRQuotaDelay  time.Duration
	ASRLanguage    string
	ASRPrompt      string

	MaxCharsPerLine    int
	MaxLinesPerCue     int
	MinCueDuration     time.Duration
	DedupWindow        time.Duration
	RemoveFillers      bool
	BurnIn             bool
	TranslateSubtitles bool

	QCEnabled        bool
	QCThreshold      float64
	QCMaxSampleItems int
	QCMaxSampleChars int

	ModerationEnabled bool
	TargetLanguage    string
}

// Snapshot captures the current pipeline configuration as immutable values.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		ChunkWindow:  secondsToDuration(c.VAD.ChunkWindowSeconds),
		ChunkOverlap: secondsToDuration(c.VAD.ChunkOverlapSeconds),
		MergeGap:     secondsToDuration(c.VAD.MergeGapSeconds),
		MinSegment:   secondsToDuration(c.VAD.MinSegmentSeconds),
		MaxSegment:   secondsToDuration(c.VAD.MaxSegmentSeconds),

		ASRMaxAttempts: c.ASR.MaxAttempts,
		ASRRetryDelay:  time.Duration(c.ASR.RetryDelaySeconds) * time.Second,
		ASRQuotaDelay:  time.Duration(c.ASR.QuotaDelaySeconds) * time.Second,
		ASRLanguage:    c.ASR.Language,
		ASRPrompt:      c.ASR.Prompt,

		MaxCharsPerLine:    c.Subtitles.MaxCharsPerLine,
		MaxLinesPerCue:     c.Subtitles.MaxLinesPerCue,
		MinCueDuration:     secondsToDuration(c.Subtitles.MinCueSeconds),
		DedupWindow:        secondsToDuration(c.Subtitles.DedupWindowSeconds),
		RemoveFillers:      c.Subtitles.RemoveFillers,
		BurnIn:             c.Subtitles.BurnIn,
		TranslateSubtitles: c.Subtitles.Translate,

		QCEnabled:        c.QC.Enabled,
		QCThreshold:      c.QC.Threshold,
		QCMaxSampleItems: c.QC.MaxSampleItems,
		QCMaxSampleChars: c.QC.MaxSampleChars,

		ModerationEnabled: c.Moderator.Enabled,
		TargetLanguage:    c.Enhancer.TargetLanguage,
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
