package subtitle

import (
	"context"
	"log/slog"
	"sort"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/services/qc"
)

// Scorer is the quality judging collaborator. Satisfied by *qc.Client.
type Scorer interface {
	Score(ctx context.Context, items []qc.SampleItem) (float64, error)
}

// Verdict is the quality gate outcome. Degraded subtitles are still kept
// and exported; only burn-in is skipped.
type Verdict struct {
	Score    float64
	Degraded bool
	Sampled  int
	Skipped  bool
}

// Gate samples the assembled cues and asks the scorer for a quality score.
// A scorer failure skips the gate rather than failing the task.
type Gate struct {
	scorer Scorer
	snap   config.Snapshot
	logger *slog.Logger
}

// NewGate constructs a quality gate. A nil scorer disables it.
func NewGate(scorer Scorer, snap config.Snapshot, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{scorer: scorer, snap: snap, logger: logger}
}

// Evaluate scores a sample of the cues against the configured threshold.
func (g *Gate) Evaluate(ctx context.Context, cues []Cue) Verdict {
	if !g.snap.QCEnabled || g.scorer == nil || len(cues) == 0 {
		return Verdict{Skipped: true}
	}

	sample := SampleCues(cues, g.snap.QCMaxSampleItems, g.snap.QCMaxSampleChars)
	if len(sample) == 0 {
		return Verdict{Skipped: true}
	}

	score, err := g.scorer.Score(ctx, sample)
	if err != nil {
		g.logger.Warn("quality scoring failed, gate skipped", logging.Error(err))
		return Verdict{Skipped: true, Sampled: len(sample)}
	}
	return Verdict{
		Score:    score,
		Degraded: score < g.snap.QCThreshold,
		Sampled:  len(sample),
	}
}

// SampleCues picks representative cues from the head, middle, and tail of
// the list, bounded by both an item count and a total character budget.
func SampleCues(cues []Cue, maxItems, maxChars int) []qc.SampleItem {
	if len(cues) == 0 || maxItems <= 0 {
		return nil
	}
	if maxItems > len(cues) {
		maxItems = len(cues)
	}

	indices := pickSpread(len(cues), maxItems)
	var items []qc.SampleItem
	chars := 0
	for _, idx := range indices {
		cue := cues[idx]
		length := len([]rune(cue.Text))
		if maxChars > 0 && chars+length > maxChars && len(items) > 0 {
			break
		}
		items = append(items, qc.SampleItem{
			Index: idx,
			Start: cue.Start,
			End:   cue.End,
			Text:  cue.Text,
		})
		chars += length
	}
	return items
}

// pickSpread selects count indices split evenly between the head, the
// middle, and the tail of a list of length n, in ascending order.
func pickSpread(n, count int) []int {
	if count >= n {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	headCount := (count + 2) / 3
	tailCount := count / 3
	midCount := count - headCount - tailCount

	seen := make(map[int]bool, count)
	var indices []int
	add := func(idx int) {
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	for i := 0; i < headCount; i++ {
		add(i)
	}
	midStart := n/2 - midCount/2
	for i := 0; i < midCount; i++ {
		add(midStart + i)
	}
	for i := 0; i < tailCount; i++ {
		add(n - tailCount + i)
	}
	sort.Ints(indices)
	return indices
}
