package retriever

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	excerptMaxRunes      = 360
	excerptSentenceRunes = 280
	excerptHardCutRunes  = 320
)

var leadingMarker = regexp.MustCompile(`^[-–•\d.)\s]+`)

// FormatExcerpt renders a chunk as a short display excerpt: its first non-empty
// line, cut at a sentence boundary when long, without a leading bullet or number.
func FormatExcerpt(raw string) string {
	var candidate string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			candidate = line
			break
		}
	}
	if candidate == "" {
		return strings.TrimSpace(raw)
	}

	if utf8.RuneCountInString(candidate) > excerptMaxRunes {
		sentences := splitSentences(candidate)
		if len(sentences) > 1 {
			var acc string
			for _, s := range sentences {
				if acc == "" {
					acc = s
				} else {
					acc += " " + s
				}
				if utf8.RuneCountInString(acc) > excerptSentenceRunes {
					break
				}
			}
			candidate = acc
		} else {
			candidate = strings.TrimRightFunc(string([]rune(candidate)[:excerptHardCutRunes]), unicode.IsSpace)
		}
	}

	return strings.TrimSpace(leadingMarker.ReplaceAllString(candidate, ""))
}

// splitSentences splits after '.', '!' or '?' when whitespace follows.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
