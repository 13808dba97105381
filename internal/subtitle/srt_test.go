package subtitle

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSRT(t *testing.T) {
	cues := []Cue{
		{Index: 1, Start: 0, End: 2.5, Text: "first line"},
		{Index: 2, Start: 61.25, End: 65, Text: "two\nlines"},
	}
	got := RenderSRT(cues)
	want := "1\n00:00:00,000 --> 00:00:02,500\nfirst line\n\n" +
		"2\n00:01:01,250 --> 00:01:05,000\ntwo\nlines\n\n"
	if got != want {
		t.Fatalf("unexpected srt:\n%q\nwant:\n%q", got, want)
	}
}

func TestSRTRoundTrip(t *testing.T) {
	cues := []Cue{
		{Index: 1, Start: 1.2, End: 3.4, Text: "hello"},
		{Index: 2, Start: 3661.5, End: 3663.75, Text: "over an hour in"},
	}
	parsed := ParseSRT(RenderSRT(cues))
	if len(parsed) != len(cues) {
		t.Fatalf("expected %d cues, got %d", len(cues), len(parsed))
	}
	for i := range cues {
		if parsed[i].Text != cues[i].Text {
			t.Errorf("cue %d text = %q", i, parsed[i].Text)
		}
		if math.Abs(parsed[i].Start-cues[i].Start) > 0.001 || math.Abs(parsed[i].End-cues[i].End) > 0.001 {
			t.Errorf("cue %d timing = [%v, %v]", i, parsed[i].Start, parsed[i].End)
		}
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	content := strings.Join([]string{
		"1",
		"00:00:00,000 --> 00:00:02,000",
		"valid",
		"",
		"not a cue at all",
		"",
		"3",
		"bogus --> timing",
		"also skipped",
		"",
		"4",
		"00:00:05,000 --> 00:00:06,000",
		"second valid",
	}, "\n")

	cues := ParseSRT(content)
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d: %+v", len(cues), cues)
	}
	if cues[0].Text != "valid" || cues[1].Text != "second valid" {
		t.Fatalf("unexpected cues: %+v", cues)
	}
	if cues[1].Index != 2 {
		t.Fatalf("reindexed cue index = %d", cues[1].Index)
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	cues := []Cue{{Index: 1, Start: 0, End: 1, Text: "written"}}
	if err := WriteSRT(path, cues); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Fatalf("unexpected file content: %q", data)
	}
}
