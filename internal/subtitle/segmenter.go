package subtitle

import (
	"context"
	"log/slog"
	"sort"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/media"
	"conveyor/internal/services/vad"
)

// SpeechDetector is the voice activity collaborator. Satisfied by
// *vad.Client.
type SpeechDetector interface {
	DetectSpeech(ctx context.Context, audioPath string) ([]vad.Span, error)
}

// SilenceFinder reports silence points inside a global-time interval.
// Backed by ffmpeg silence detection on the task's audio.
type SilenceFinder func(ctx context.Context, startSec, endSec float64) []media.SilencePoint

// Segmenter turns one chunk's audio into refined speech segments on the
// global timeline.
type Segmenter struct {
	detector SpeechDetector
	snap     config.Snapshot
	silence  SilenceFinder
	logger   *slog.Logger
}

// NewSegmenter constructs a segmenter. The silence finder may be nil, in
// which case oversized segments are always split at fixed intervals.
func NewSegmenter(detector SpeechDetector, snap config.Snapshot, silence SilenceFinder, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Segmenter{detector: detector, snap: snap, silence: silence, logger: logger}
}

// SegmentChunk detects speech in the chunk's extracted audio clip and
// refines the spans. A detector failure falls back to fixed-length
// segmentation of this chunk only; it never fails the pipeline.
func (s *Segmenter) SegmentChunk(ctx context.Context, chunk Chunk, clipPath string) []Segment {
	spans, err := s.detector.DetectSpeech(ctx, clipPath)
	if err != nil {
		s.logger.Warn("voice detection failed, using fixed-length segments",
			logging.Error(err),
			logging.Int("chunk", chunk.Index))
		return fixedSegments(chunk, s.snap.MaxSegment.Seconds(), s.snap.MinSegment.Seconds())
	}

	segments := make([]Segment, 0, len(spans))
	for _, span := range spans {
		start := chunk.Start + span.Start
		end := chunk.Start + span.End
		if end > chunk.End {
			end = chunk.End
		}
		if end <= start {
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, ChunkIndex: chunk.Index})
	}
	if len(segments) == 0 {
		return nil
	}
	return Refine(ctx, segments, s.snap, s.silence)
}

// Refine applies the three refinement passes in order: merge close spans,
// absorb spans below the minimum into a neighbor, and split spans above the
// maximum. Input must be sorted by start time; chunk index is preserved.
func Refine(ctx context.Context, segments []Segment, snap config.Snapshot, silence SilenceFinder) []Segment {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := mergeClose(sorted, snap.MergeGap.Seconds())
	absorbed := absorbShort(merged, snap.MinSegment.Seconds())
	return splitLong(ctx, absorbed, snap, silence)
}

// mergeClose joins adjacent spans whose gap is below the threshold.
func mergeClose(segments []Segment, gap float64) []Segment {
	out := []Segment{segments[0]}
	for _, seg := range segments[1:] {
		last := &out[len(out)-1]
		if seg.Start-last.End < gap {
			if seg.End > last.End {
				last.End = seg.End
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// absorbShort folds spans below the minimum duration into a neighbor,
// preferring the following span. A lone short span is kept; the chunk simply
// has less speech than the minimum.
func absorbShort(segments []Segment, minSec float64) []Segment {
	out := append([]Segment(nil), segments...)
	for {
		idx := -1
		for i, seg := range out {
			if seg.Duration() < minSec && len(out) > 1 {
				idx = i
				break
			}
		}
		if idx < 0 {
			return out
		}
		if idx+1 < len(out) {
			out[idx+1].Start = out[idx].Start
			out = append(out[:idx], out[idx+1:]...)
		} else {
			out[idx-1].End = out[idx].End
			out = out[:idx]
		}
	}
}

// splitLong cuts each oversized span at its most-silent qualifying interior
// point. The two halves are accepted as-is; only a span with no qualifying
// silence point is cut at fixed maximum-length intervals.
func splitLong(ctx context.Context, segments []Segment, snap config.Snapshot, silence SilenceFinder) []Segment {
	maxSec := snap.MaxSegment.Seconds()
	minSec := snap.MinSegment.Seconds()
	if maxSec <= 0 {
		return segments
	}

	var out []Segment
	for _, seg := range segments {
		if seg.Duration() <= maxSec {
			out = append(out, seg)
			continue
		}
		if point, ok := quietestPoint(ctx, seg, minSec, silence); ok {
			out = append(out,
				Segment{Start: seg.Start, End: point, ChunkIndex: seg.ChunkIndex},
				Segment{Start: point, End: seg.End, ChunkIndex: seg.ChunkIndex})
			continue
		}
		for start := seg.Start; start < seg.End; start += maxSec {
			end := start + maxSec
			if end > seg.End {
				end = seg.End
			}
			out = append(out, Segment{Start: start, End: end, ChunkIndex: seg.ChunkIndex})
		}
	}
	return out
}

// quietestPoint picks the longest silence inside the span that leaves at
// least the minimum duration on both sides.
func quietestPoint(ctx context.Context, seg Segment, minSec float64, silence SilenceFinder) (float64, bool) {
	if silence == nil {
		return 0, false
	}
	var best media.SilencePoint
	found := false
	for _, point := range silence(ctx, seg.Start, seg.End) {
		if point.At <= seg.Start+minSec || point.At >= seg.End-minSec {
			continue
		}
		if !found || point.Duration > best.Duration {
			best = point
			found = true
		}
	}
	return best.At, found
}

// fixedSegments is the detector-failure fallback: plain maximum-length
// intervals over the chunk, folding a too-short tail into the previous
// piece.
func fixedSegments(chunk Chunk, maxSec, minSec float64) []Segment {
	if maxSec <= 0 || chunk.Duration() <= maxSec {
		return []Segment{{Start: chunk.Start, End: chunk.End, ChunkIndex: chunk.Index}}
	}
	var out []Segment
	for start := chunk.Start; start < chunk.End; start += maxSec {
		end := start + maxSec
		if end > chunk.End {
			end = chunk.End
		}
		out = append(out, Segment{Start: start, End: end, ChunkIndex: chunk.Index})
	}
	if len(out) > 1 && out[len(out)-1].Duration() < minSec {
		out[len(out)-2].End = out[len(out)-1].End
		out = out[:len(out)-1]
	}
	return out
}
