package subtitle

import "time"

// SplitChunks divides a recording of the given duration into overlapping
// windows. A recording no longer than one window yields a single chunk.
// Otherwise chunks advance by window minus overlap until the duration is
// covered; the final chunk may be shorter than a full window.
func SplitChunks(durationSec float64, window, overlap time.Duration) []Chunk {
	if durationSec <= 0 {
		return nil
	}
	windowSec := window.Seconds()
	overlapSec := overlap.Seconds()
	if windowSec <= 0 || durationSec <= windowSec {
		return []Chunk{{Index: 0, Start: 0, End: durationSec}}
	}
	if overlapSec < 0 || overlapSec >= windowSec {
		overlapSec = 0
	}

	var chunks []Chunk
	start := 0.0
	for {
		end := start + windowSec
		if end >= durationSec {
			chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: durationSec})
			return chunks
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
		start = end - overlapSec
	}
}
