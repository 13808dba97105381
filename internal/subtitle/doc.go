// Package subtitle generates timed subtitles for a task's media. The
// pipeline splits the audio into overlapping chunks, refines voice activity
// spans into readable segments, transcribes each segment with retry, and
// stitches the per-chunk results into one ordered cue list guarded by a
// quality gate.
package subtitle
