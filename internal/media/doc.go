// Package media wraps the ffmpeg and ffprobe binaries for the operations the
// pipeline needs: container probing, speech-ready audio extraction, clip
// cutting, silence detection, and subtitle burn-in.
package media
