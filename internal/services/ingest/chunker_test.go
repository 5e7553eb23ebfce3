package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c d", Normalize("  a\r\nb\n\n\tc   d \r\n"))
	assert.Equal(t, "", Normalize(" \n\t "))
}

func TestEffectiveWindow(t *testing.T) {
	tests := []struct {
		maxWords, overlap      int
		wantWords, wantOverlap int
	}{
		{260, 40, 260, 40},
		{10, 5, 50, 5},
		{50, 100, 50, 40},
		{100, -3, 100, 0},
		{60, 50, 60, 50},
		{60, 51, 60, 50},
	}
	for _, tc := range tests {
		w, o := EffectiveWindow(tc.maxWords, tc.overlap)
		assert.Equal(t, tc.wantWords, w, "maxWords=%d overlap=%d", tc.maxWords, tc.overlap)
		assert.Equal(t, tc.wantOverlap, o, "maxWords=%d overlap=%d", tc.maxWords, tc.overlap)
	}
}

func TestBuildChunks_Empty(t *testing.T) {
	chunks, complete := BuildChunks("", 260, 40, 120)
	assert.Empty(t, chunks)
	assert.True(t, complete)
}

func TestBuildChunks_ShortTextIsOneChunk(t *testing.T) {
	chunks, complete := BuildChunks(words(30), 260, 40, 120)
	require.Len(t, chunks, 1)
	assert.True(t, complete)
	assert.Equal(t, words(30), chunks[0])
}

func TestBuildChunks_OverlapAndStride(t *testing.T) {
	all := strings.Fields(words(900))
	chunks, complete := BuildChunks(words(900), 260, 40, 120)
	require.True(t, complete)
	require.Len(t, chunks, 4)

	starts := []int{0, 220, 440, 660}
	for i, c := range chunks {
		got := strings.Fields(c)
		end := min(starts[i]+260, len(all))
		assert.Equal(t, all[starts[i]:end], got, "chunk %d", i)
		assert.LessOrEqual(t, len(got), 260)
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		assert.Equal(t, prev[len(prev)-40:], next[:40], "overlap between %d and %d", i, i+1)
	}
}

func TestBuildChunks_FloorAppliesToTinyWindow(t *testing.T) {
	chunks, complete := BuildChunks(words(120), 5, 0, 0)
	require.True(t, complete)
	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0]), 50)
	assert.Len(t, strings.Fields(chunks[2]), 20)
}

func TestBuildChunks_OverlapClampedToLeaveFreshWords(t *testing.T) {
	chunks, complete := BuildChunks(words(70), 50, 1000, 0)
	require.True(t, complete)
	// overlap clamps to 40, so the stride is 10 words
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[1], "w10 "))
	assert.True(t, strings.HasPrefix(chunks[2], "w20 "))
}

func TestBuildChunks_CapReportsIncomplete(t *testing.T) {
	chunks, complete := BuildChunks(words(1000), 50, 0, 3)
	assert.Len(t, chunks, 3)
	assert.False(t, complete)

	chunks, complete = BuildChunks(words(150), 50, 0, 3)
	assert.Len(t, chunks, 3)
	assert.True(t, complete)
}
