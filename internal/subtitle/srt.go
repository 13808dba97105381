package subtitle

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// RenderSRT formats the cue list as an SRT document.
func RenderSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		index := cue.Index
		if index == 0 {
			index = i + 1
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			index, formatSRTTimestamp(cue.Start), formatSRTTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// WriteSRT renders the cues to a file.
func WriteSRT(path string, cues []Cue) error {
	if err := os.WriteFile(path, []byte(RenderSRT(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ParseSRT reads an SRT document back into cues. Blocks without a valid
// timing line are skipped.
func ParseSRT(content string) []Cue {
	var cues []Cue
	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		cue, ok := parseBlock(lines)
		if !ok {
			continue
		}
		cue.Index = len(cues) + 1
		cues = append(cues, cue)
	}
	return cues
}

func parseBlock(lines []string) (Cue, bool) {
	timingLine := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timingLine = i
			break
		}
	}
	if timingLine < 0 || timingLine+1 >= len(lines) {
		return Cue{}, false
	}
	parts := strings.Split(lines[timingLine], "-->")
	if len(parts) != 2 {
		return Cue{}, false
	}
	start, errStart := parseSRTTimestamp(parts[0])
	end, errEnd := parseSRTTimestamp(parts[1])
	if errStart != nil || errEnd != nil {
		return Cue{}, false
	}
	text := strings.TrimSpace(strings.Join(lines[timingLine+1:], "\n"))
	if text == "" {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: text}, true
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(math.Round(seconds * 1000))
	hours := millis / 3600000
	millis -= hours * 3600000
	minutes := millis / 60000
	millis -= minutes * 60000
	secs := millis / 1000
	millis -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
