package workflow

import (
	"conveyor/internal/config"
	"conveyor/internal/enhance"
	"conveyor/internal/fetch"
	"conveyor/internal/moderate"
	"conveyor/internal/publish"
	"conveyor/internal/queue"
	"conveyor/internal/stage"
	"conveyor/internal/subtitle"
	"log/slog"
)

// StageDef binds one pipeline stage to its state machine events. Entry is
// the status a task waits in before this stage claims it.
type StageDef struct {
	Name    string
	Entry   queue.Status
	Start   queue.Event
	Done    func(task *queue.Task) queue.Event
	Handler stage.Handler
}

// StageSet is the per-lane stage sequence for one task run.
type StageSet struct {
	Processing []StageDef
	Upload     []StageDef
}

// StageFactory builds a stage set against the configuration snapshot
// captured when a task run starts. Later config reloads never affect a run
// already in flight.
type StageFactory func(snap config.Snapshot) StageSet

// Collaborators are the external service clients the default stages use.
type Collaborators struct {
	Fetcher    fetch.Fetcher
	Detector   subtitle.SpeechDetector
	Recognizer subtitle.Recognizer
	Scorer     subtitle.Scorer
	Translator enhance.Translator
	Reviewer   moderate.Reviewer
	Uploader   publish.Uploader
}

// Workspace provides per-task scratch directories for the stages.
type Workspace interface {
	TaskDir(taskID string) (string, error)
}

func fixedEvent(event queue.Event) func(*queue.Task) queue.Event {
	return func(*queue.Task) queue.Event { return event }
}

// DefaultStageFactory wires the production stage handlers.
func DefaultStageFactory(cfg *config.Config, collab Collaborators, workspace Workspace, logger *slog.Logger) StageFactory {
	ffmpeg := cfg.FFmpegBinary()
	ffprobe := cfg.FFprobeBinary()
	return func(snap config.Snapshot) StageSet {
		return StageSet{
			Processing: []StageDef{
				{
					Name:    "fetch",
					Entry:   queue.StatusPending,
					Start:   queue.EventStartFetch,
					Done:    fixedEvent(queue.EventFetched),
					Handler: fetch.NewStage(collab.Fetcher, workspace, logger),
				},
				{
					Name:  "subtitles",
					Entry: queue.StatusDownloaded,
					Start: queue.EventStartSubtitles,
					Done:  fixedEvent(queue.EventSubtitled),
					Handler: subtitle.NewPipelineStage(snap, ffmpeg, ffprobe,
						collab.Detector, collab.Recognizer, collab.Scorer, workspace, logger),
				},
				{
					Name:    "enhance",
					Entry:   queue.StatusSubtitled,
					Start:   queue.EventStartEnhance,
					Done:    fixedEvent(queue.EventEnhanced),
					Handler: enhance.NewStage(collab.Translator, snap, logger),
				},
				{
					Name:  "moderate",
					Entry: queue.StatusEnhanced,
					Start: queue.EventStartModerate,
					Done: func(task *queue.Task) queue.Event {
						if moderate.Held(task) {
							return queue.EventHeld
						}
						return queue.EventApproved
					},
					Handler: moderate.NewStage(collab.Reviewer, snap, logger),
				},
			},
			Upload: []StageDef{
				{
					Name:    "upload",
					Entry:   queue.StatusReadyForUpload,
					Start:   queue.EventStartUpload,
					Done:    fixedEvent(queue.EventUploaded),
					Handler: publish.NewStage(collab.Uploader, logger),
				},
			},
		}
	}
}
