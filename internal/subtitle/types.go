package subtitle

// Chunk is one bounded audio window. Adjacent chunks share a small overlap
// so no speech is lost at a boundary; at most two chunks ever cover the same
// instant.
type Chunk struct {
	Index int
	Start float64
	End   float64
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// Segment is one refined speech interval on the global timeline.
type Segment struct {
	Start      float64
	End        float64
	Confidence float64
	ChunkIndex int
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Result is the transcription outcome for one segment. A failed segment is
// kept so the assembler can account for gaps; its text is empty.
type Result struct {
	Segment    Segment
	Text       string
	Language   string
	Confidence float64
	Attempts   int
	Failed     bool
}

// Cue is one final subtitle unit. The assembled cue list is strictly ordered
// and non-overlapping.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}
