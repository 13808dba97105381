package subtitle

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/media"
	"conveyor/internal/services/vad"
)

type stubDetector struct {
	spans []vad.Span
	err   error
}

func (d stubDetector) DetectSpeech(context.Context, string) ([]vad.Span, error) {
	return d.spans, d.err
}

func refineSnapshot() config.Snapshot {
	return config.Snapshot{
		MergeGap:   250 * time.Millisecond,
		MinSegment: time.Second,
		MaxSegment: 8 * time.Second,
	}
}

func assertSegments(t *testing.T, got []Segment, want [][2]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if math.Abs(got[i].Start-w[0]) > 1e-9 || math.Abs(got[i].End-w[1]) > 1e-9 {
			t.Errorf("segment %d = [%v, %v], want [%v, %v]", i, got[i].Start, got[i].End, w[0], w[1])
		}
	}
}

func TestRefineMergesAbsorbsAndSplitsAtSilence(t *testing.T) {
	segments := []Segment{
		{Start: 0.1, End: 0.4},
		{Start: 0.5, End: 0.9},
		{Start: 3.0, End: 15.0},
	}
	silence := func(ctx context.Context, start, end float64) []media.SilencePoint {
		return []media.SilencePoint{{At: 11.0, Duration: 0.8}}
	}

	refined := Refine(context.Background(), segments, refineSnapshot(), silence)
	assertSegments(t, refined, [][2]float64{{0.1, 11.0}, {11.0, 15.0}})
}

func TestRefineSplitsAtFixedIntervalsWithoutSilence(t *testing.T) {
	segments := []Segment{{Start: 0, End: 20}}
	refined := Refine(context.Background(), segments, refineSnapshot(), nil)
	assertSegments(t, refined, [][2]float64{{0, 8}, {8, 16}, {16, 20}})
}

func TestRefinePicksQuietestQualifyingPoint(t *testing.T) {
	segments := []Segment{{Start: 0, End: 12}}
	silence := func(ctx context.Context, start, end float64) []media.SilencePoint {
		return []media.SilencePoint{
			{At: 0.5, Duration: 5.0},  // too close to the start
			{At: 4.0, Duration: 0.4},
			{At: 7.0, Duration: 0.9},  // longest qualifying silence
			{At: 11.6, Duration: 3.0}, // too close to the end
		}
	}
	refined := Refine(context.Background(), segments, refineSnapshot(), silence)
	assertSegments(t, refined, [][2]float64{{0, 7}, {7, 12}})
}

func TestRefineKeepsLoneShortSegment(t *testing.T) {
	segments := []Segment{{Start: 2.0, End: 2.5}}
	refined := Refine(context.Background(), segments, refineSnapshot(), nil)
	assertSegments(t, refined, [][2]float64{{2.0, 2.5}})
}

func TestRefineAbsorbsBackwardAtTail(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 5},
		{Start: 9.0, End: 9.5},
	}
	refined := Refine(context.Background(), segments, refineSnapshot(), nil)
	assertSegments(t, refined, [][2]float64{{0, 8}, {8, 9.5}})
}

func TestSegmentChunkOffsetsIntoGlobalTime(t *testing.T) {
	detector := stubDetector{spans: []vad.Span{{Start: 1.0, End: 4.0}}}
	segmenter := NewSegmenter(detector, refineSnapshot(), nil, nil)

	chunk := Chunk{Index: 2, Start: 49.6, End: 74.6}
	segments := segmenter.SegmentChunk(context.Background(), chunk, "unused.wav")
	assertSegments(t, segments, [][2]float64{{50.6, 53.6}})
	if segments[0].ChunkIndex != 2 {
		t.Fatalf("chunk index = %d", segments[0].ChunkIndex)
	}
}

func TestSegmentChunkFallsBackOnDetectorError(t *testing.T) {
	detector := stubDetector{err: errors.New("vad unreachable")}
	segmenter := NewSegmenter(detector, refineSnapshot(), nil, nil)

	chunk := Chunk{Index: 0, Start: 0, End: 20}
	segments := segmenter.SegmentChunk(context.Background(), chunk, "unused.wav")
	assertSegments(t, segments, [][2]float64{{0, 8}, {8, 16}, {16, 20}})
}

func TestSegmentChunkClampsSpansToChunkEnd(t *testing.T) {
	detector := stubDetector{spans: []vad.Span{{Start: 18.0, End: 30.0}}}
	segmenter := NewSegmenter(detector, refineSnapshot(), nil, nil)

	chunk := Chunk{Index: 0, Start: 0, End: 20}
	segments := segmenter.SegmentChunk(context.Background(), chunk, "unused.wav")
	assertSegments(t, segments, [][2]float64{{18, 20}})
}
