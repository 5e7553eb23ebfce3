package retriever

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short line", "  Post every day.  ", "Post every day."},
		{"first non-empty line", "\r\n\r\n  Hook first.\r\nThen deliver.", "Hook first."},
		{"dash bullet", "- Reply to comments", "Reply to comments"},
		{"en dash bullet", "– Batch your filming", "Batch your filming"},
		{"dot bullet", "•  Use captions", "Use captions"},
		{"numbered", "12) Study your analytics", "Study your analytics"},
		{"numbered with dot", "3. Collaborate often", "Collaborate often"},
		{"blank", "  \n \t ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatExcerpt(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, FormatExcerpt(got))
		})
	}
}

func TestFormatExcerpt_LongLineCutAtSentences(t *testing.T) {
	sentence := strings.Repeat("x", 99) + "."
	line := strings.TrimSpace(strings.Repeat(sentence+" ", 5))

	got := FormatExcerpt(line)
	// sentences accumulate until the text passes 280 runes
	assert.Equal(t, strings.Join([]string{sentence, sentence, sentence}, " "), got)
}

func TestFormatExcerpt_LongLineWithoutSentencesIsTruncated(t *testing.T) {
	line := strings.Repeat("abcd ", 100)

	got := FormatExcerpt(line)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("abcd ", 64)), got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 320)
}

func TestFormatExcerpt_CountsRunesNotBytes(t *testing.T) {
	line := strings.Repeat("é", 350)
	assert.Equal(t, line, FormatExcerpt(line))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?", "four"}, splitSentences("One. Two!  Three? four"))
	assert.Equal(t, []string{"v1.2 is out"}, splitSentences("v1.2 is out"))
}
