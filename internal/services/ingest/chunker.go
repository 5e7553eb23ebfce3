package ingest

import (
	"strings"
)

const (
	minChunkWords = 50
	// minFreshWords is how many words of each chunk must not repeat the previous one.
	minFreshWords = 10
)

// Normalize flattens text into a single line of words separated by one space.
// Paragraph structure is discarded.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
}

// EffectiveWindow applies the chunk size floor and the overlap clamp.
func EffectiveWindow(maxWords, overlapWords int) (int, int) {
	if maxWords < minChunkWords {
		maxWords = minChunkWords
	}
	overlapWords = min(max(overlapWords, 0), maxWords-minFreshWords)
	return maxWords, overlapWords
}

// BuildChunks slides a window of maxWords words over text, stepping back overlapWords
// words between windows. It stops once maxChunks chunks exist; complete is false
// when words were left over at that point. maxChunks <= 0 means no cap.
func BuildChunks(text string, maxWords, overlapWords, maxChunks int) (chunks []string, complete bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, true
	}
	maxWords, overlapWords = EffectiveWindow(maxWords, overlapWords)

	for start := 0; ; {
		if maxChunks > 0 && len(chunks) >= maxChunks {
			return chunks, false
		}
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			return chunks, true
		}
		next := end - overlapWords
		if next <= start {
			next = end
		}
		start = next
	}
}
