package logging

import (
	"context"
	"testing"

	"conveyor/internal/services"
)

func TestContextFields(t *testing.T) {
	ctx := services.WithTaskID(context.Background(), "task-1")
	ctx = services.WithStage(ctx, "subtitles")
	ctx = services.WithLane(ctx, "processing")
	ctx = services.WithRequestID(ctx, "req-9")

	fields := ContextFields(ctx)
	if len(fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(fields))
	}

	got := make(map[string]string, len(fields))
	for _, attr := range fields {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		FieldTaskID:        "task-1",
		FieldStage:         "subtitles",
		FieldLane:          "processing",
		FieldCorrelationID: "req-9",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("field %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields from a bare context, got %d", len(fields))
	}
}
