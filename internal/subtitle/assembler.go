package subtitle

import (
	"sort"
	"strings"

	"conveyor/internal/config"
)

// Assemble stitches per-chunk transcription results into one ordered,
// non-overlapping cue list. Failed segments are skipped. The operation is
// deterministic: the same inputs always produce the same cues.
func Assemble(results []Result, chunks []Chunk, snap config.Snapshot) []Cue {
	kept := resolveOverlaps(results, chunks)
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Segment.Start != kept[j].Segment.Start {
			return kept[i].Segment.Start < kept[j].Segment.Start
		}
		return kept[i].Segment.ChunkIndex < kept[j].Segment.ChunkIndex
	})

	cues := buildCues(kept, snap)
	cues = dedupCues(cues, snap.DedupWindow.Seconds())
	cues = enforceTiming(cues, snap.MinCueDuration.Seconds())
	for i := range cues {
		cues[i].Index = i + 1
	}
	return cues
}

// resolveOverlaps drops the losing result wherever two chunks transcribed
// the same time range. The winner is the chunk with the larger overlap
// fraction against the disputed range; on an exact tie the lower chunk
// index wins.
func resolveOverlaps(results []Result, chunks []Chunk) []Result {
	bounds := make(map[int]Chunk, len(chunks))
	for _, chunk := range chunks {
		bounds[chunk.Index] = chunk
	}

	kept := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Failed || strings.TrimSpace(res.Text) == "" {
			continue
		}
		kept = append(kept, res)
	}

	dropped := make(map[int]bool)
	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			a, b := kept[i], kept[j]
			if a.Segment.ChunkIndex == b.Segment.ChunkIndex {
				continue
			}
			disputedStart := maxFloat(a.Segment.Start, b.Segment.Start)
			disputedEnd := minFloat(a.Segment.End, b.Segment.End)
			if disputedEnd <= disputedStart {
				continue
			}
			if dropSecond(a, b, bounds, disputedStart, disputedEnd) {
				dropped[j] = true
			} else {
				dropped[i] = true
			}
		}
	}

	out := make([]Result, 0, len(kept))
	for i, res := range kept {
		if !dropped[i] {
			out = append(out, res)
		}
	}
	return out
}

// dropSecond reports whether b loses the dispute against a. Exactly one of
// the two is always discarded; on an exact coverage tie the result from the
// lower chunk index survives.
func dropSecond(a, b Result, bounds map[int]Chunk, disputedStart, disputedEnd float64) bool {
	fracA := chunkCoverage(bounds[a.Segment.ChunkIndex], disputedStart, disputedEnd)
	fracB := chunkCoverage(bounds[b.Segment.ChunkIndex], disputedStart, disputedEnd)
	if fracA != fracB {
		return fracA > fracB
	}
	return a.Segment.ChunkIndex <= b.Segment.ChunkIndex
}

// chunkCoverage is the fraction of [start, end) that falls inside the chunk.
func chunkCoverage(chunk Chunk, start, end float64) float64 {
	if end <= start {
		return 0
	}
	covered := minFloat(chunk.End, end) - maxFloat(chunk.Start, start)
	if covered < 0 {
		covered = 0
	}
	return covered / (end - start)
}

// buildCues converts surviving results into cues, wrapping long text and
// splitting a result's time range proportionally across spilled cues.
func buildCues(results []Result, snap config.Snapshot) []Cue {
	var cues []Cue
	for _, res := range results {
		text := collapseRepeats(res.Text)
		pieces := WrapCue(text, snap.MaxCharsPerLine, snap.MaxLinesPerCue)
		if len(pieces) == 0 {
			continue
		}
		cues = append(cues, spreadPieces(res.Segment, pieces)...)
	}
	return cues
}

// spreadPieces assigns each spilled cue a share of the segment's duration
// proportional to its text length.
func spreadPieces(seg Segment, pieces []string) []Cue {
	if len(pieces) == 1 {
		return []Cue{{Start: seg.Start, End: seg.End, Text: pieces[0]}}
	}
	total := 0
	for _, piece := range pieces {
		total += len([]rune(piece))
	}
	if total == 0 {
		return nil
	}

	cues := make([]Cue, 0, len(pieces))
	cursor := seg.Start
	for i, piece := range pieces {
		end := seg.End
		if i < len(pieces)-1 {
			share := float64(len([]rune(piece))) / float64(total)
			end = cursor + share*seg.Duration()
		}
		cues = append(cues, Cue{Start: cursor, End: end, Text: piece})
		cursor = end
	}
	return cues
}

// dedupCues drops a cue whose normalized text repeats the previous cue
// within the dedup window. Recognition models hallucinate the same phrase
// across adjacent segments, especially over music.
func dedupCues(cues []Cue, windowSec float64) []Cue {
	if windowSec <= 0 || len(cues) == 0 {
		return cues
	}
	out := cues[:1]
	for _, cue := range cues[1:] {
		prev := out[len(out)-1]
		if cue.Start-prev.End <= windowSec && normalizeForCompare(cue.Text) == normalizeForCompare(prev.Text) {
			if cue.End > prev.End {
				out[len(out)-1].End = cue.End
			}
			continue
		}
		out = append(out, cue)
	}
	return out
}

func normalizeForCompare(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// enforceTiming clamps overlapping starts and stretches too-short cues up
// to the minimum duration without intruding on the next cue.
func enforceTiming(cues []Cue, minCueSec float64) []Cue {
	for i := range cues {
		if i > 0 && cues[i].Start < cues[i-1].End {
			cues[i].Start = cues[i-1].End
		}
		if cues[i].End < cues[i].Start {
			cues[i].End = cues[i].Start
		}
	}
	for i := range cues {
		if minCueSec <= 0 || cues[i].End-cues[i].Start >= minCueSec {
			continue
		}
		desired := cues[i].Start + minCueSec
		if i+1 < len(cues) && desired > cues[i+1].Start {
			desired = cues[i+1].Start
		}
		if desired > cues[i].End {
			cues[i].End = desired
		}
	}

	out := cues[:0]
	for _, cue := range cues {
		if cue.End > cue.Start && strings.TrimSpace(cue.Text) != "" {
			out = append(out, cue)
		}
	}
	return out
}

// collapseRepeats removes hallucinated repetition: runs of the same word
// and a whole text that is one phrase repeated verbatim.
func collapseRepeats(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	deduped := words[:1]
	for _, word := range words[1:] {
		if strings.EqualFold(word, deduped[len(deduped)-1]) {
			continue
		}
		deduped = append(deduped, word)
	}

	for phraseLen := 1; phraseLen <= len(deduped)/2; phraseLen++ {
		if len(deduped)%phraseLen != 0 {
			continue
		}
		if isRepeatedPhrase(deduped, phraseLen) {
			return strings.Join(deduped[:phraseLen], " ")
		}
	}
	return strings.Join(deduped, " ")
}

func isRepeatedPhrase(words []string, phraseLen int) bool {
	for i := phraseLen; i < len(words); i++ {
		if !strings.EqualFold(words[i], words[i%phraseLen]) {
			return false
		}
	}
	return true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
