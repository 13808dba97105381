package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline task.
type Status string

const (
	StatusPending            Status = "pending"
	StatusDownloading        Status = "downloading"
	StatusDownloaded         Status = "downloaded"
	StatusSubtitleProcessing Status = "subtitle_processing"
	StatusSubtitled          Status = "subtitled"
	StatusEnhancing          Status = "enhancing"
	StatusEnhanced           Status = "enhanced"
	StatusModerating         Status = "moderating"
	StatusAwaitingReview     Status = "awaiting_manual_review"
	StatusReadyForUpload     Status = "ready_for_upload"
	StatusUploading          Status = "uploading"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusSubtitleProcessing,
	StatusSubtitled,
	StatusEnhancing,
	StatusEnhanced,
	StatusModerating,
	StatusAwaitingReview,
	StatusReadyForUpload,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading:        {},
	StatusSubtitleProcessing: {},
	StatusEnhancing:          {},
	StatusModerating:         {},
	StatusUploading:          {},
}

// stageRollbacks maps each in-flight status back to the status a task is
// returned to when its worker dies without finishing the stage.
var stageRollbacks = map[Status]Status{
	StatusDownloading:        StatusPending,
	StatusSubtitleProcessing: StatusDownloaded,
	StatusEnhancing:          StatusSubtitled,
	StatusModerating:         StatusEnhanced,
	StatusUploading:          StatusReadyForUpload,
}

// Lane identifies which concurrency lane a status is worked in.
type Lane string

const (
	LaneProcessing Lane = "processing"
	LaneUpload     Lane = "upload"
)

// LaneForStatus maps a status to the lane that works it. Terminal and
// review-hold statuses belong to no lane and return an empty value.
func LaneForStatus(status Status) Lane {
	switch status {
	case StatusPending, StatusDownloading, StatusDownloaded,
		StatusSubtitleProcessing, StatusSubtitled,
		StatusEnhancing, StatusEnhanced, StatusModerating:
		return LaneProcessing
	case StatusReadyForUpload, StatusUploading:
		return LaneUpload
	default:
		return ""
	}
}

// Task represents a pipeline task persisted in SQLite.
type Task struct {
	ID              string
	SourceURL       string
	Title           string
	Description     string
	DurationSeconds float64
	Status          Status
	MediaPath       string
	AudioPath       string
	SubtitlePath    string
	BurnedMediaPath string
	MetadataJSON    string
	FindingsJSON    string
	Degraded        bool
	QCScore         float64
	RetryCountsJSON string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorStage      string
	ErrorClass      string
	ErrorAttempts   int
	ErrorMessage    string
	CancelRequested bool
	ExternalID      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Review     int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline for a task.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// IsProcessing returns true when the task is in an in-flight stage.
func (t Task) IsProcessing() bool {
	return IsProcessingStatus(t.Status)
}

// SetProgress updates all three progress fields together.
func (t *Task) SetProgress(stage, message string, percent float64) {
	t.ProgressStage = stage
	t.ProgressMessage = message
	t.ProgressPercent = percent
}

// ClearError resets the structured failure fields, typically before a retry.
func (t *Task) ClearError() {
	t.ErrorStage = ""
	t.ErrorClass = ""
	t.ErrorAttempts = 0
	t.ErrorMessage = ""
}
