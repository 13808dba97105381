package subtitle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/services"
	"conveyor/internal/services/asr"
)

// Recognizer is the speech recognition collaborator. Satisfied by
// *asr.Client.
type Recognizer interface {
	Transcribe(ctx context.Context, req asr.Request) (asr.Transcript, error)
}

// Clipper extracts a time range from an audio file into dest. Backed by
// ffmpeg in production.
type Clipper func(ctx context.Context, source string, startSec, durationSec float64, dest string) error

// Transcriber recognizes each refined segment with bounded retry. A segment
// whose attempts are exhausted is recorded as failed and the run continues;
// a task may finish with a partial transcript.
type Transcriber struct {
	recognizer Recognizer
	clip       Clipper
	snap       config.Snapshot
	logger     *slog.Logger
}

// NewTranscriber constructs a transcriber.
func NewTranscriber(recognizer Recognizer, clip Clipper, snap config.Snapshot, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcriber{recognizer: recognizer, clip: clip, snap: snap, logger: logger}
}

// TranscribeSegments runs recognition over all segments in order. Clips are
// written under scratchDir and removed as each segment finishes. The run
// stops early only on context cancellation.
func (t *Transcriber) TranscribeSegments(ctx context.Context, audioPath, scratchDir string, segments []Segment) ([]Result, error) {
	policy := services.RetryPolicy{
		MaxAttempts: t.snap.ASRMaxAttempts,
		BaseDelay:   t.snap.ASRRetryDelay,
		QuotaDelay:  t.snap.ASRQuotaDelay,
	}

	results := make([]Result, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, t.transcribeOne(ctx, policy, audioPath, scratchDir, i, seg))
	}
	return results, nil
}

func (t *Transcriber) transcribeOne(ctx context.Context, policy services.RetryPolicy, audioPath, scratchDir string, index int, seg Segment) Result {
	result := Result{Segment: seg}

	clipPath := filepath.Join(scratchDir, fmt.Sprintf("segment_%04d.wav", index))
	if err := t.clip(ctx, audioPath, seg.Start, seg.Duration(), clipPath); err != nil {
		t.logger.Warn("segment clip failed", logging.Error(err), logging.Int("segment", index))
		result.Failed = true
		return result
	}
	defer os.Remove(clipPath)

	var transcript asr.Transcript
	attempts, err := services.Retry(ctx, policy, func(ctx context.Context) error {
		var opErr error
		transcript, opErr = t.recognizer.Transcribe(ctx, asr.Request{
			AudioPath: clipPath,
			Language:  t.snap.ASRLanguage,
			Prompt:    t.snap.ASRPrompt,
		})
		return opErr
	})
	result.Attempts = attempts
	if err != nil {
		t.logger.Warn("segment transcription exhausted",
			logging.Error(err),
			logging.Int("segment", index),
			logging.Int("attempts", attempts))
		result.Failed = true
		return result
	}

	text := Normalize(transcript.Text)
	if t.snap.RemoveFillers {
		text = Normalize(RemoveFillers(text))
	}
	result.Text = text
	result.Language = transcript.Language
	result.Confidence = transcript.Confidence
	if result.Text == "" {
		result.Failed = true
	}
	return result
}
