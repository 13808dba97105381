package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"conveyor/internal/config"
	"conveyor/internal/queue"
	"conveyor/internal/testsupport"
)

func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "conveyor.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndListCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)

	out, err := executeCommand(t, "-c", configPath, "add", "https://example.com/watch?v=cli", "--title", "CLI Title")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Queued") {
		t.Fatalf("unexpected add output: %q", out)
	}

	// A duplicate source is reported, not queued twice.
	out, err = executeCommand(t, "-c", configPath, "add", "https://example.com/watch?v=cli")
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if !strings.Contains(out, "Already queued") {
		t.Fatalf("duplicate not detected: %q", out)
	}

	out, err = executeCommand(t, "-c", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "pending") || !strings.Contains(out, "CLI Title") {
		t.Fatalf("unexpected list output: %q", out)
	}

	out, err = executeCommand(t, "-c", configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("unexpected status output: %q", out)
	}
}

func TestReviewCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	task := testsupport.NewTask(t, store, "https://example.com/watch?v=review", "Held")
	testsupport.AdvanceTask(t, store, task.ID,
		queue.EventStartFetch, queue.EventFetched,
		queue.EventStartSubtitles, queue.EventSubtitled,
		queue.EventStartEnhance, queue.EventEnhanced,
		queue.EventStartModerate, queue.EventHeld)

	out, err := executeCommand(t, "-c", configPath, "review", "list")
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	if !strings.Contains(out, task.ID[:8]) {
		t.Fatalf("held task missing from review list: %q", out)
	}

	out, err = executeCommand(t, "-c", configPath, "review", "approve", task.ID)
	if err != nil {
		t.Fatalf("review approve: %v", err)
	}
	if !strings.Contains(out, string(queue.StatusReadyForUpload)) {
		t.Fatalf("unexpected approve output: %q", out)
	}

	got, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != queue.StatusReadyForUpload {
		t.Fatalf("approve did not release the task: %s", got.Status)
	}
}

func TestReviewRerunCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	task := testsupport.NewTask(t, store, "https://example.com/watch?v=rerun", "Held")
	testsupport.AdvanceTask(t, store, task.ID,
		queue.EventStartFetch, queue.EventFetched,
		queue.EventStartSubtitles, queue.EventSubtitled,
		queue.EventStartEnhance, queue.EventEnhanced,
		queue.EventStartModerate, queue.EventHeld)

	if _, err := executeCommand(t, "-c", configPath, "review", "rerun", task.ID); err != nil {
		t.Fatalf("review rerun: %v", err)
	}
	got, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != queue.StatusEnhanced {
		t.Fatalf("rerun should park the task before moderation: %s", got.Status)
	}
}

func TestReviewEditCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	task := testsupport.NewTask(t, store, "https://example.com/watch?v=edit", "Held")
	if err := task.SetMetadata(queue.Metadata{
		TranslatedTitle: "机翻标题",
		Tags:            []string{"old"},
		Category:        "games",
	}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
	if err := store.Update(context.Background(), task); err != nil {
		t.Fatalf("persist metadata: %v", err)
	}
	testsupport.AdvanceTask(t, store, task.ID,
		queue.EventStartFetch, queue.EventFetched,
		queue.EventStartSubtitles, queue.EventSubtitled,
		queue.EventStartEnhance, queue.EventEnhanced,
		queue.EventStartModerate, queue.EventHeld)

	out, err := executeCommand(t, "-c", configPath, "review", "edit", task.ID,
		"--title", "人工校对标题", "--tags", "fixed,clean")
	if err != nil {
		t.Fatalf("review edit: %v", err)
	}
	if !strings.Contains(out, "Updated metadata") {
		t.Fatalf("unexpected edit output: %q", out)
	}

	got, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	meta, err := got.Metadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.TranslatedTitle != "人工校对标题" {
		t.Fatalf("title not updated: %+v", meta)
	}
	if len(meta.Tags) != 2 || meta.Tags[0] != "fixed" || meta.Tags[1] != "clean" {
		t.Fatalf("tags not updated: %+v", meta)
	}
	// Untouched fields survive the edit.
	if meta.Category != "games" {
		t.Fatalf("category should be unchanged: %+v", meta)
	}

	// Flagless invocations and tasks outside the review hold are rejected.
	if _, err := executeCommand(t, "-c", configPath, "review", "edit", task.ID); err == nil {
		t.Fatal("expected an error when no fields are given")
	}
	other := testsupport.NewTask(t, store, "https://example.com/watch?v=edit2", "Pending")
	if _, err := executeCommand(t, "-c", configPath, "review", "edit", other.ID, "--title", "x"); err == nil {
		t.Fatal("expected an error for a task not awaiting review")
	}
}

func TestCancelCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	task := testsupport.NewTask(t, store, "https://example.com/watch?v=cancel", "Running")
	testsupport.AdvanceTask(t, store, task.ID, queue.EventStartFetch)

	out, err := executeCommand(t, "-c", configPath, "cancel", task.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(out, "Cancellation requested") {
		t.Fatalf("unexpected cancel output: %q", out)
	}

	requested, err := store.CancelRequested(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("cancel flag: %v", err)
	}
	if !requested {
		t.Fatal("cancel flag not set")
	}
}

func TestTaskIDPrefixResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	task := testsupport.NewTask(t, store, "https://example.com/watch?v=prefix", "Prefix")

	out, err := executeCommand(t, "-c", configPath, "queue", "show", task.ID[:8])
	if err != nil {
		t.Fatalf("queue show by prefix: %v", err)
	}
	if !strings.Contains(out, task.ID) {
		t.Fatalf("prefix did not resolve: %q", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conveyor.toml")

	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)

	if _, err := executeCommand(t, "-c", configPath, "queue", "list", "--status", "nonsense"); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
}
