package media

import (
	"math"
	"testing"
)

func TestParseSilenceOutput(t *testing.T) {
	output := `
[silencedetect @ 0x55] silence_start: 4.8
[silencedetect @ 0x55] silence_end: 5.6 | silence_duration: 0.8
frame=  100 fps= 25
[silencedetect @ 0x55] silence_start: 12.25
[silencedetect @ 0x55] silence_end: 12.75 | silence_duration: 0.5
`
	points := parseSilenceOutput(output)
	if len(points) != 2 {
		t.Fatalf("expected 2 silence points, got %d", len(points))
	}
	if math.Abs(points[0].At-5.2) > 1e-9 {
		t.Fatalf("unexpected first midpoint: %v", points[0].At)
	}
	if math.Abs(points[0].Duration-0.8) > 1e-9 {
		t.Fatalf("unexpected first duration: %v", points[0].Duration)
	}
	if math.Abs(points[1].At-12.5) > 1e-9 {
		t.Fatalf("unexpected second midpoint: %v", points[1].At)
	}
}

func TestParseSilenceOutputIgnoresDanglingEnd(t *testing.T) {
	points := parseSilenceOutput("[silencedetect] silence_end: 3.0 | silence_duration: 1.0\n")
	if len(points) != 0 {
		t.Fatalf("expected no points for dangling end, got %d", len(points))
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`/tmp/a b's:file.srt`)
	want := `/tmp/a b\'s\:file.srt`
	if got != want {
		t.Fatalf("escapeFilterPath = %q, want %q", got, want)
	}
}
