package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// BurnIn renders an SRT file into the video stream, producing a new media
// file with hard subtitles. Audio is copied untouched.
func BurnIn(ctx context.Context, ffmpegBinary, source, subtitlePath, dest string) error {
	if strings.TrimSpace(subtitlePath) == "" {
		return fmt.Errorf("burn in: empty subtitle path")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", "subtitles=" + escapeFilterPath(subtitlePath),
		"-c:a", "copy",
		dest,
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg burn in: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// escapeFilterPath escapes characters the ffmpeg filter graph parser treats
// specially inside a filename argument.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
	return replacer.Replace(path)
}
