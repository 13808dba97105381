package subtitle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/services/qc"
)

type stubScorer struct {
	score float64
	err   error
	last  []qc.SampleItem
}

func (s *stubScorer) Score(ctx context.Context, items []qc.SampleItem) (float64, error) {
	s.last = items
	return s.score, s.err
}

func qualitySnapshot() config.Snapshot {
	return config.Snapshot{
		QCEnabled:        true,
		QCThreshold:      0.6,
		QCMaxSampleItems: 12,
		QCMaxSampleChars: 2000,
	}
}

func manyCues(n int) []Cue {
	cues := make([]Cue, n)
	for i := range cues {
		cues[i] = Cue{
			Index: i + 1,
			Start: float64(i) * 2,
			End:   float64(i)*2 + 1.5,
			Text:  fmt.Sprintf("cue number %d", i),
		}
	}
	return cues
}

func TestGateMarksDegradedBelowThreshold(t *testing.T) {
	scorer := &stubScorer{score: 0.4}
	gate := NewGate(scorer, qualitySnapshot(), nil)

	verdict := gate.Evaluate(context.Background(), manyCues(30))
	if verdict.Skipped {
		t.Fatal("gate should not be skipped")
	}
	if !verdict.Degraded || verdict.Score != 0.4 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestGatePassesAtThreshold(t *testing.T) {
	scorer := &stubScorer{score: 0.6}
	gate := NewGate(scorer, qualitySnapshot(), nil)

	verdict := gate.Evaluate(context.Background(), manyCues(30))
	if verdict.Degraded {
		t.Fatalf("score at threshold should pass: %+v", verdict)
	}
}

func TestGateSkipsOnScorerError(t *testing.T) {
	scorer := &stubScorer{err: errors.New("scorer down")}
	gate := NewGate(scorer, qualitySnapshot(), nil)

	verdict := gate.Evaluate(context.Background(), manyCues(30))
	if !verdict.Skipped || verdict.Degraded {
		t.Fatalf("scorer failure must not degrade the task: %+v", verdict)
	}
}

func TestGateDisabled(t *testing.T) {
	snap := qualitySnapshot()
	snap.QCEnabled = false
	gate := NewGate(&stubScorer{score: 0.1}, snap, nil)

	verdict := gate.Evaluate(context.Background(), manyCues(10))
	if !verdict.Skipped {
		t.Fatalf("disabled gate must be skipped: %+v", verdict)
	}
}

func TestSampleCuesSpreadsAcrossList(t *testing.T) {
	items := SampleCues(manyCues(100), 12, 2000)
	if len(items) != 12 {
		t.Fatalf("expected 12 items, got %d", len(items))
	}
	if items[0].Index != 0 {
		t.Fatalf("sample should include the head, got first index %d", items[0].Index)
	}
	if items[len(items)-1].Index != 99 {
		t.Fatalf("sample should include the tail, got last index %d", items[len(items)-1].Index)
	}
	mid := false
	for _, item := range items {
		if item.Index > 30 && item.Index < 70 {
			mid = true
		}
	}
	if !mid {
		t.Fatal("sample should include the middle of the list")
	}
	for i := 1; i < len(items); i++ {
		if items[i].Index <= items[i-1].Index {
			t.Fatal("sample indices must be strictly ascending")
		}
	}
}

func TestSampleCuesHonorsCharBudget(t *testing.T) {
	items := SampleCues(manyCues(100), 12, 30)
	if len(items) == 0 {
		t.Fatal("budget must admit at least one item")
	}
	if len(items) >= 12 {
		t.Fatalf("char budget should cut the sample short, got %d items", len(items))
	}
}

func TestSampleCuesSmallList(t *testing.T) {
	items := SampleCues(manyCues(3), 12, 2000)
	if len(items) != 3 {
		t.Fatalf("expected all cues sampled, got %d", len(items))
	}
}
