package subtitle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/media"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/stage"
)

const (
	silenceMinDuration = 0.3
	silenceNoiseDB     = -30
)

// Workspace provides the per-task scratch directory.
type Workspace interface {
	TaskDir(taskID string) (string, error)
}

// PipelineStage runs the full subtitle generation pipeline for one task.
type PipelineStage struct {
	snap       config.Snapshot
	ffmpeg     string
	ffprobe    string
	detector   SpeechDetector
	recognizer Recognizer
	gate       *Gate
	workspace  Workspace
	logger     *slog.Logger
}

// NewPipelineStage wires the collaborators into a stage handler.
func NewPipelineStage(snap config.Snapshot, ffmpeg, ffprobe string, detector SpeechDetector, recognizer Recognizer, scorer Scorer, workspace Workspace, logger *slog.Logger) *PipelineStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PipelineStage{
		snap:       snap,
		ffmpeg:     ffmpeg,
		ffprobe:    ffprobe,
		detector:   detector,
		recognizer: recognizer,
		gate:       NewGate(scorer, snap, logger),
		workspace:  workspace,
		logger:     logger,
	}
}

// Prepare probes the downloaded media and extracts a mono audio track for
// the detection and recognition calls.
func (p *PipelineStage) Prepare(ctx context.Context, task *queue.Task) error {
	if task.MediaPath == "" {
		return services.Wrap(services.ErrValidation, "subtitles", "prepare", "task has no media path", nil)
	}
	if _, err := os.Stat(task.MediaPath); err != nil {
		return services.Wrap(services.ErrNotFound, "subtitles", "prepare", "media file missing", err)
	}

	probe, err := media.Probe(ctx, p.ffprobe, task.MediaPath)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "subtitles", "prepare", "probe media", err)
	}
	if task.DurationSeconds <= 0 {
		task.DurationSeconds = probe.DurationSeconds()
	}
	if probe.AudioStreamIndex() < 0 {
		return services.Wrap(services.ErrPermanent, "subtitles", "prepare", "media has no audio stream", nil)
	}

	dir, err := p.workspace.TaskDir(task.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "subtitles", "prepare", "task workspace", err)
	}
	audioPath := filepath.Join(dir, "audio.wav")
	if err := media.ExtractAudio(ctx, p.ffmpeg, task.MediaPath, audioPath); err != nil {
		return services.Wrap(services.ErrPermanent, "subtitles", "prepare", "extract audio", err)
	}
	task.AudioPath = audioPath
	return nil
}

// Execute generates subtitles for the task: chunk, segment, transcribe,
// assemble, quality-gate, export, and optionally burn in.
func (p *PipelineStage) Execute(ctx context.Context, task *queue.Task) error {
	dir, err := p.workspace.TaskDir(task.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "subtitles", "execute", "task workspace", err)
	}

	chunks := SplitChunks(task.DurationSeconds, p.snap.ChunkWindow, p.snap.ChunkOverlap)
	if len(chunks) == 0 {
		return services.Wrap(services.ErrValidation, "subtitles", "execute", "media has no duration", nil)
	}

	segments, err := p.collectSegments(ctx, task, dir, chunks)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		p.logger.Info("no speech detected", logging.String(logging.FieldTaskID, task.ID))
		task.SetProgress("subtitles", "no speech detected", 100)
		return nil
	}

	task.SetProgress("subtitles", fmt.Sprintf("transcribing %d segments", len(segments)), 40)
	transcriber := NewTranscriber(p.recognizer, p.clipAudio, p.snap, p.logger)
	results, err := transcriber.TranscribeSegments(ctx, task.AudioPath, dir, segments)
	if err != nil {
		return services.Wrap(services.ErrTransient, "subtitles", "execute", "transcription interrupted", err)
	}

	cues := Assemble(results, chunks, p.snap)
	if len(cues) == 0 {
		p.logger.Warn("all segments failed transcription", logging.String(logging.FieldTaskID, task.ID))
		task.SetProgress("subtitles", "transcription produced no cues", 100)
		return nil
	}

	task.SetProgress("subtitles", "scoring subtitle quality", 80)
	verdict := p.gate.Evaluate(ctx, cues)
	task.QCScore = verdict.Score
	task.Degraded = verdict.Degraded
	if verdict.Degraded {
		p.logger.Warn("subtitles below quality threshold",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Float64("score", verdict.Score))
	}

	subtitlePath := filepath.Join(dir, "subtitles.srt")
	if err := WriteSRT(subtitlePath, cues); err != nil {
		return services.Wrap(services.ErrTransient, "subtitles", "execute", "export subtitles", err)
	}
	task.SubtitlePath = subtitlePath

	if p.snap.BurnIn && !verdict.Degraded {
		task.SetProgress("subtitles", "burning subtitles into media", 90)
		burnedPath := filepath.Join(dir, "burned"+filepath.Ext(task.MediaPath))
		if err := media.BurnIn(ctx, p.ffmpeg, task.MediaPath, subtitlePath, burnedPath); err != nil {
			return services.Wrap(services.ErrTransient, "subtitles", "execute", "burn in subtitles", err)
		}
		task.BurnedMediaPath = burnedPath
	}

	task.SetProgress("subtitles", fmt.Sprintf("generated %d cues", len(cues)), 100)
	return nil
}

// HealthCheck verifies the local tooling; collaborator endpoints are
// exercised lazily on first use.
func (p *PipelineStage) HealthCheck(ctx context.Context) stage.Health {
	for _, binary := range []string{p.ffmpeg, p.ffprobe} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("subtitles", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return stage.Healthy("subtitles")
}

// collectSegments extracts each chunk's audio and refines its speech spans.
func (p *PipelineStage) collectSegments(ctx context.Context, task *queue.Task, dir string, chunks []Chunk) ([]Segment, error) {
	segmenter := NewSegmenter(p.detector, p.snap, p.findSilence(task.AudioPath), p.logger)

	var segments []Segment
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTransient, "subtitles", "execute", "segmentation interrupted", err)
		}
		task.SetProgress("subtitles",
			fmt.Sprintf("detecting speech in chunk %d/%d", chunk.Index+1, len(chunks)),
			float64(chunk.Index)/float64(len(chunks))*40)

		clipPath := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", chunk.Index))
		if err := p.clipAudio(ctx, task.AudioPath, chunk.Start, chunk.Duration(), clipPath); err != nil {
			return nil, services.Wrap(services.ErrTransient, "subtitles", "execute", "extract chunk audio", err)
		}
		segments = append(segments, segmenter.SegmentChunk(ctx, chunk, clipPath)...)
		os.Remove(clipPath)
	}
	return segments, nil
}

func (p *PipelineStage) clipAudio(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	return media.ExtractClip(ctx, p.ffmpeg, source, startSec, durationSec, dest)
}

// findSilence builds a silence finder over the task's full audio track,
// translating clip-local silence points back to the global timeline.
func (p *PipelineStage) findSilence(audioPath string) SilenceFinder {
	return func(ctx context.Context, startSec, endSec float64) []media.SilencePoint {
		clipPath := audioPath + fmt.Sprintf(".probe_%d_%d.wav", int(startSec*1000), int(endSec*1000))
		if err := media.ExtractClip(ctx, p.ffmpeg, audioPath, startSec, endSec-startSec, clipPath); err != nil {
			return nil
		}
		defer os.Remove(clipPath)

		points, err := media.DetectSilence(ctx, p.ffmpeg, clipPath, silenceMinDuration, silenceNoiseDB)
		if err != nil {
			return nil
		}
		for i := range points {
			points[i].At += startSec
		}
		return points
	}
}
