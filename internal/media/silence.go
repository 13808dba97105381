package media

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// SilencePoint is the midpoint of a detected silence interval, in seconds
// relative to the start of the analyzed file.
type SilencePoint struct {
	At       float64
	Duration float64
}

// DetectSilence runs ffmpeg's silencedetect filter over an audio file and
// returns the midpoints of silent intervals, sorted by position. minSilence
// is the minimum silence length to report; noiseDB is the detection floor
// (e.g. -35 means anything below -35 dB counts as silence).
func DetectSilence(ctx context.Context, ffmpegBinary, source string, minSilence float64, noiseDB int) ([]SilencePoint, error) {
	if minSilence <= 0 {
		minSilence = 0.3
	}
	if noiseDB >= 0 {
		noiseDB = -35
	}
	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%s", noiseDB, formatSeconds(minSilence))
	args := []string{
		"-hide_banner",
		"-nostats",
		"-i", source,
		"-af", filter,
		"-f", "null",
		"-",
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	// silencedetect reports on stderr; a nonzero exit still may carry output.
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return parseSilenceOutput(string(output)), nil
}

func parseSilenceOutput(output string) []SilencePoint {
	var (
		points []SilencePoint
		start  float64
		open   bool
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := silenceField(line, "silence_start:"); ok {
			start = value
			open = true
			continue
		}
		if value, ok := silenceField(line, "silence_end:"); ok && open {
			duration := value - start
			if duration < 0 {
				duration = 0
			}
			points = append(points, SilencePoint{
				At:       start + duration/2,
				Duration: duration,
			})
			open = false
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At < points[j].At })
	return points
}

func silenceField(line, marker string) (float64, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	if cut := strings.IndexByte(rest, ' '); cut >= 0 {
		rest = rest[:cut]
	}
	value, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
