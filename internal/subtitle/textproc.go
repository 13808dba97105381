package subtitle

import (
	"strings"
	"unicode"
)

// fillerWords are discourse fillers stripped when filler removal is enabled.
// Tokens are matched case-insensitively against whole words.
var fillerWords = map[string]struct{}{
	"um":   {},
	"uh":   {},
	"uhm":  {},
	"er":   {},
	"erm":  {},
	"hmm":  {},
	"嗯":    {},
	"呃":    {},
	"啊":    {},
	"emmm": {},
}

// clauseBreakers are the characters a line may wrap after, in both Latin and
// CJK punctuation.
const clauseBreakers = ".,!?;:，。！？；：、"

// Normalize collapses runs of whitespace, trims the ends, and removes stray
// spaces before punctuation.
func Normalize(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Join(fields, " ")

	var b strings.Builder
	b.Grow(len(joined))
	runes := []rune(joined)
	for i, r := range runes {
		if r == ' ' && i+1 < len(runes) && strings.ContainsRune(clauseBreakers, runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RemoveFillers drops standalone filler words. Punctuation attached to a
// filler is kept with the surrounding text.
func RemoveFillers(text string) string {
	words := strings.Fields(text)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		core := strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r)
		})
		if _, ok := fillerWords[strings.ToLower(core)]; ok && core != "" {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// WrapCue wraps text into display lines of at most maxChars characters and
// groups them into cues of at most maxLines lines. Text that exceeds both
// limits spills into additional cue texts, split on clause boundaries where
// possible.
func WrapCue(text string, maxChars, maxLines int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}
	if maxLines <= 0 {
		maxLines = 1
	}

	lines := wrapLines(text, maxChars)
	var cues []string
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		cues = append(cues, strings.Join(lines[start:end], "\n"))
	}
	return cues
}

// wrapLines greedily packs clause fragments into lines of at most maxChars
// runes, falling back to word and then rune boundaries.
func wrapLines(text string, maxChars int) []string {
	var lines []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.TrimSpace(string(current)))
			current = current[:0]
		}
	}

	for _, fragment := range splitClauses(text) {
		runes := []rune(fragment)
		switch {
		case len(current)+len(runes) <= maxChars:
			current = append(current, runes...)
		case len(runes) <= maxChars:
			flush()
			current = append(current, runes...)
		default:
			flush()
			lines = append(lines, breakLongFragment(fragment, maxChars)...)
		}
	}
	flush()
	return lines
}

// splitClauses cuts text after clause punctuation, keeping the punctuation
// with the preceding fragment.
func splitClauses(text string) []string {
	var fragments []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if strings.ContainsRune(clauseBreakers, r) {
			fragments = append(fragments, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		fragments = append(fragments, string(current))
	}
	return fragments
}

// breakLongFragment splits a clause that alone exceeds the line budget,
// first at spaces and, for unspaced text, at rune boundaries.
func breakLongFragment(fragment string, maxChars int) []string {
	var lines []string
	var current []rune
	for _, word := range strings.Fields(fragment) {
		runes := []rune(word)
		if len(current) > 0 && len(current)+1+len(runes) > maxChars {
			lines = append(lines, string(current))
			current = current[:0]
		}
		if len(runes) > maxChars {
			for len(runes) > maxChars {
				lines = append(lines, string(runes[:maxChars]))
				runes = runes[maxChars:]
			}
			current = append(current[:0], runes...)
			continue
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, runes...)
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
