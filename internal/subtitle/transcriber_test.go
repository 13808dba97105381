package subtitle

import (
	"context"
	"os"
	"testing"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
	"conveyor/internal/services/asr"
)

type scriptedRecognizer struct {
	calls     int
	failUntil int
	failWith  error
	text      string
}

func (r *scriptedRecognizer) Transcribe(ctx context.Context, req asr.Request) (asr.Transcript, error) {
	r.calls++
	if r.calls <= r.failUntil {
		return asr.Transcript{}, r.failWith
	}
	return asr.Transcript{Text: r.text, Language: "en", Confidence: 0.95}, nil
}

func writeClip(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	return os.WriteFile(dest, []byte("clip"), 0o644)
}

func transcriberSnapshot() config.Snapshot {
	return config.Snapshot{
		ASRMaxAttempts: 3,
		ASRRetryDelay:  time.Millisecond,
		ASRQuotaDelay:  time.Millisecond,
	}
}

func TestTranscribeSucceedsOnThirdAttempt(t *testing.T) {
	recognizer := &scriptedRecognizer{
		failUntil: 2,
		failWith:  services.Wrap(services.ErrTransient, "subtitles", "asr", "http 502", nil),
		text:      "eventual success",
	}
	tr := NewTranscriber(recognizer, writeClip, transcriberSnapshot(), nil)

	results, err := tr.TranscribeSegments(context.Background(), "audio.wav", t.TempDir(),
		[]Segment{{Start: 0, End: 5}})
	if err != nil {
		t.Fatalf("TranscribeSegments failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Failed || results[0].Attempts != 3 || results[0].Text != "eventual success" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestTranscribeDoesNotRetryPermanentErrors(t *testing.T) {
	recognizer := &scriptedRecognizer{
		failUntil: 10,
		failWith:  services.Wrap(services.ErrPermanent, "subtitles", "asr", "http 400", nil),
	}
	tr := NewTranscriber(recognizer, writeClip, transcriberSnapshot(), nil)

	results, err := tr.TranscribeSegments(context.Background(), "audio.wav", t.TempDir(),
		[]Segment{{Start: 0, End: 5}})
	if err != nil {
		t.Fatalf("TranscribeSegments failed: %v", err)
	}
	if !results[0].Failed || results[0].Attempts != 1 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if recognizer.calls != 1 {
		t.Fatalf("recognizer called %d times", recognizer.calls)
	}
}

func TestTranscribeContinuesPastExhaustedSegment(t *testing.T) {
	recognizer := &scriptedRecognizer{
		failUntil: 3,
		failWith:  services.Wrap(services.ErrTransient, "subtitles", "asr", "timeout", nil),
		text:      "second segment",
	}
	tr := NewTranscriber(recognizer, writeClip, transcriberSnapshot(), nil)

	results, err := tr.TranscribeSegments(context.Background(), "audio.wav", t.TempDir(),
		[]Segment{{Start: 0, End: 5}, {Start: 5, End: 10}})
	if err != nil {
		t.Fatalf("TranscribeSegments failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if !results[0].Failed || results[0].Attempts != 3 {
		t.Fatalf("first segment should be exhausted: %+v", results[0])
	}
	if results[1].Failed || results[1].Text != "second segment" {
		t.Fatalf("second segment should succeed: %+v", results[1])
	}
}

func TestTranscribeNormalizesAndRemovesFillers(t *testing.T) {
	recognizer := &scriptedRecognizer{text: "  um so  this   works , right ?"}
	snap := transcriberSnapshot()
	snap.RemoveFillers = true
	tr := NewTranscriber(recognizer, writeClip, snap, nil)

	results, err := tr.TranscribeSegments(context.Background(), "audio.wav", t.TempDir(),
		[]Segment{{Start: 0, End: 5}})
	if err != nil {
		t.Fatalf("TranscribeSegments failed: %v", err)
	}
	if results[0].Text != "so this works, right?" {
		t.Fatalf("text = %q", results[0].Text)
	}
}

func TestTranscribeStopsOnCancelledContext(t *testing.T) {
	recognizer := &scriptedRecognizer{text: "never used"}
	tr := NewTranscriber(recognizer, writeClip, transcriberSnapshot(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.TranscribeSegments(ctx, "audio.wav", t.TempDir(),
		[]Segment{{Start: 0, End: 5}})
	if err == nil {
		t.Fatal("expected context error")
	}
}
