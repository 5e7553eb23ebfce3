package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"creator-coach/internal/database/model"
	"creator-coach/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn int // 1-based call number that fails; 0 never fails
	empty  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.failOn > 0 && n == f.failOn {
		return nil, errors.New("provider unavailable")
	}
	if f.empty {
		return nil, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

type recordingIndex struct {
	docID  string
	chunks []model.Chunk
	err    error
}

func (r *recordingIndex) Replace(_ context.Context, documentID string, chunks []model.Chunk) error {
	r.docID = documentID
	r.chunks = chunks
	return r.err
}

type recordingArchiver struct {
	calls int
}

func (r *recordingArchiver) Archive(context.Context, []byte, string, string) (string, error) {
	r.calls++
	return "documents/abc.txt", nil
}

var testLimits = Limits{
	MaxFileBytes: 1 << 20,
	MaxWords:     260,
	OverlapWords: 40,
	MaxChunks:    120,
}

func textUpload(title, body string) Upload {
	return Upload{Data: []byte(body), FileName: "guide.txt", MediaType: "text/plain", Title: title}
}

func TestIngest_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	emb := &fakeEmbedder{}
	p := NewPipeline(store, emb, testLimits)

	res, err := p.Ingest(ctx, textUpload("  Growth Guide ", words(900)))
	require.NoError(t, err)
	assert.Equal(t, 4, res.ChunksInserted)
	assert.Equal(t, 4, emb.calls)

	doc, err := store.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Growth Guide", doc.Title)
	assert.Nil(t, doc.Source)

	chunks, err := store.ListChunks(ctx, res.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, float32(len(c.Content)), c.Embedding[0])
		assert.LessOrEqual(t, len(strings.Fields(c.Content)), 260)
	}
	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	assert.Equal(t, first[220:], second[:40])
}

func TestIngest_ReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	p := NewPipeline(store, &fakeEmbedder{}, testLimits)
	src := " blog "

	first, err := p.Ingest(ctx, Upload{Data: []byte(words(900)), MediaType: "text/plain", Title: "Guide", Source: &src})
	require.NoError(t, err)
	second, err := p.Ingest(ctx, Upload{Data: []byte("only a few new words"), MediaType: "text/plain", Title: "Guide", Source: &src})
	require.NoError(t, err)

	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, second.ChunksInserted)
	chunks, err := store.ListChunks(ctx, second.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only a few new words", chunks[0].Content)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Source)
	assert.Equal(t, "blog", *docs[0].Source)
}

func TestIngest_BlankSourceIsNull(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	p := NewPipeline(store, &fakeEmbedder{}, testLimits)
	blank := "   "

	a, err := p.Ingest(ctx, Upload{Data: []byte("one"), MediaType: "text/plain", Title: "T", Source: &blank})
	require.NoError(t, err)
	b, err := p.Ingest(ctx, textUpload("T", "two"))
	require.NoError(t, err)
	assert.Equal(t, a.DocumentID, b.DocumentID)
}

func TestIngest_TooManyChunksWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	emb := &fakeEmbedder{}
	limits := testLimits
	limits.MaxWords, limits.OverlapWords, limits.MaxChunks = 50, 0, 2
	p := NewPipeline(store, emb, limits)

	_, err := p.Ingest(ctx, textUpload("Big", words(101)))
	require.ErrorIs(t, err, ErrTooManyChunks)
	assert.Zero(t, emb.calls)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_EmbeddingFailureKeepsPreviousChunks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	good, err := NewPipeline(store, &fakeEmbedder{}, testLimits).Ingest(ctx, textUpload("Guide", "original advice text"))
	require.NoError(t, err)

	emb := &fakeEmbedder{failOn: 2}
	_, err = NewPipeline(store, emb, testLimits).Ingest(ctx, textUpload("Guide", words(900)))
	require.ErrorIs(t, err, ErrEmbedding)
	assert.Equal(t, 2, emb.calls)

	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindEmbedding, ie.Kind)

	chunks, err := store.ListChunks(ctx, good.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "original advice text", chunks[0].Content)
}

func TestIngest_EmptyVectorIsEmbeddingError(t *testing.T) {
	p := NewPipeline(repository.NewMemoryStore(), &fakeEmbedder{empty: true}, testLimits)
	_, err := p.Ingest(context.Background(), textUpload("Guide", "some words"))
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestIngest_ParallelEmbeddingKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	limits := testLimits
	limits.EmbedConcurrency = 4
	res, err := NewPipeline(store, &fakeEmbedder{}, limits).Ingest(ctx, textUpload("Guide", words(900)))
	require.NoError(t, err)

	chunks, err := store.ListChunks(ctx, res.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, float32(len(c.Content)), c.Embedding[0])
	}
}

func TestIngest_RejectsBadInput(t *testing.T) {
	limits := testLimits
	limits.MaxFileBytes = 16
	p := NewPipeline(repository.NewMemoryStore(), &fakeEmbedder{}, limits)
	ctx := context.Background()

	tests := []struct {
		name   string
		upload Upload
		want   error
	}{
		{"blank title", textUpload("  ", "text"), ErrInvalidInput},
		{"empty file", textUpload("T", ""), ErrInvalidInput},
		{"too large", textUpload("T", strings.Repeat("a ", 20)), ErrFileTooLarge},
		{"unsupported", Upload{Data: []byte{0x89, 'P', 'N', 'G'}, FileName: "a.png", MediaType: "image/png", Title: "T"}, ErrUnsupportedMediaType},
		{"whitespace only", textUpload("T", " \n\t "), ErrEmptyExtraction},
		{"image-only pdf", Upload{Data: []byte("%PDF-1.4\n%%EOF"), FileName: "scan.pdf", MediaType: "application/pdf", Title: "T"}, ErrEmptyExtraction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Ingest(ctx, tc.upload)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestIngest_MirrorsAndArchives(t *testing.T) {
	idx := &recordingIndex{err: errors.New("milvus down")}
	arc := &recordingArchiver{}
	p := NewPipeline(repository.NewMemoryStore(), &fakeEmbedder{}, testLimits, WithVectorIndex(idx), WithArchiver(arc))

	res, err := p.Ingest(context.Background(), textUpload("Guide", words(300)))
	require.NoError(t, err)
	assert.Equal(t, res.DocumentID, idx.docID)
	assert.Len(t, idx.chunks, res.ChunksInserted)
	assert.Equal(t, 1, arc.calls)
}

func TestError_CodesAndMessages(t *testing.T) {
	err := newError(KindTooManyChunks, nil, "document needs more than %d chunks", 3)
	assert.Equal(t, "document needs more than 3 chunks", err.Error())
	assert.True(t, errors.Is(err, ErrTooManyChunks))
	assert.False(t, errors.Is(err, ErrEmbedding))

	wrapped := newError(KindStore, errors.New("deadlock"), "storing chunks failed")
	assert.Equal(t, "storing chunks failed: deadlock", wrapped.Error())
	assert.NotEqual(t, wrapped.ErrorCode(), err.ErrorCode())
}
