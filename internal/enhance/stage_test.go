package enhance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/services/enhancer"
	"conveyor/internal/subtitle"
)

type fakeTranslator struct {
	result     enhancer.Result
	enhanceErr error

	lineCalls [][]string
	lineFn    func(lines []string) ([]string, error)
}

func (f *fakeTranslator) Enhance(ctx context.Context, req enhancer.Request) (enhancer.Result, error) {
	if f.enhanceErr != nil {
		return enhancer.Result{}, f.enhanceErr
	}
	return f.result, nil
}

func (f *fakeTranslator) TranslateLines(ctx context.Context, lines []string, targetLanguage string) ([]string, error) {
	f.lineCalls = append(f.lineCalls, lines)
	if f.lineFn != nil {
		return f.lineFn(lines)
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = "译:" + line
	}
	return out, nil
}

func writeCues(t *testing.T, cues []subtitle.Cue) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.srt")
	if err := subtitle.WriteSRT(path, cues); err != nil {
		t.Fatalf("write srt: %v", err)
	}
	return path
}

func TestExecuteStoresMetadata(t *testing.T) {
	translator := &fakeTranslator{result: enhancer.Result{
		Title:       "译文标题",
		Description: "译文描述",
		Tags:        []string{"gaming"},
		Category:    "games",
	}}
	s := NewStage(translator, config.Snapshot{TargetLanguage: "zh"}, nil)

	task := &queue.Task{ID: "t1", Title: "Original", Description: "Desc"}
	if err := s.Execute(context.Background(), task); err != nil {
		t.Fatalf("execute: %v", err)
	}

	meta, err := task.Metadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.TranslatedTitle != "译文标题" || meta.Category != "games" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(translator.lineCalls) != 0 {
		t.Fatal("subtitle translation must be off by default")
	}
}

func TestExecuteTranslatesSubtitles(t *testing.T) {
	path := writeCues(t, []subtitle.Cue{
		{Start: 0, End: 2, Text: "hello there"},
		{Start: 2, End: 4, Text: "two lines\nof text"},
	})

	translator := &fakeTranslator{result: enhancer.Result{Title: "标题"}}
	s := NewStage(translator, config.Snapshot{TargetLanguage: "zh", TranslateSubtitles: true}, nil)

	task := &queue.Task{ID: "t2", Title: "Original", SubtitlePath: path}
	if err := s.Execute(context.Background(), task); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := strings.TrimSuffix(path, ".srt") + ".zh.srt"
	if task.SubtitlePath != want {
		t.Fatalf("subtitle path = %q, want %q", task.SubtitlePath, want)
	}
	raw, err := os.ReadFile(task.SubtitlePath)
	if err != nil {
		t.Fatalf("read translated file: %v", err)
	}
	cues := subtitle.ParseSRT(string(raw))
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Text != "译:hello there" || cues[1].Text != "译:two lines\nof text" {
		t.Fatalf("cue text not translated: %+v", cues)
	}
	// The original file stays behind for comparison.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("source subtitles removed: %v", err)
	}
}

func TestExecuteSubtitleTranslationFailureFailsStage(t *testing.T) {
	path := writeCues(t, []subtitle.Cue{{Start: 0, End: 1, Text: "hi"}})

	translator := &fakeTranslator{
		result: enhancer.Result{Title: "标题"},
		lineFn: func([]string) ([]string, error) {
			return nil, services.Wrap(services.ErrQuota, "enhance", "enhancer", "rate limited", nil)
		},
	}
	s := NewStage(translator, config.Snapshot{TargetLanguage: "zh", TranslateSubtitles: true}, nil)

	task := &queue.Task{ID: "t3", Title: "Original", SubtitlePath: path}
	err := s.Execute(context.Background(), task)
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if task.SubtitlePath != path {
		t.Fatal("subtitle path must not change on failure")
	}
}

func TestPrepareRequiresTitle(t *testing.T) {
	s := NewStage(&fakeTranslator{}, config.Snapshot{}, nil)
	err := s.Prepare(context.Background(), &queue.Task{ID: "t4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
