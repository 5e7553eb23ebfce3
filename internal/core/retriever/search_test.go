package retriever

import (
	"context"
	"errors"
	"testing"

	"creator-coach/internal/database/model"
	"creator-coach/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticEmbedder struct {
	vec []float32
	err error
}

func (e staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

type failingVectors struct{ calls int }

func (f *failingVectors) SearchDocument(context.Context, string, []float32, int, []string) ([]Hit, error) {
	f.calls++
	return nil, errors.New("milvus unavailable")
}

func seedVectors(t *testing.T) (*repository.MemoryStore, []string) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "Growth Guide", nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertChunks(ctx, doc.ID, []model.Chunk{
		{ChunkIndex: 0, Content: "east", Embedding: []float32{1, 0}},
		{ChunkIndex: 1, Content: "north", Embedding: []float32{0, 1}},
		{ChunkIndex: 2, Content: "north-east", Embedding: []float32{1, 1}},
		{ChunkIndex: 3, Content: "wrong dim", Embedding: []float32{1, 1, 1}},
	}))
	rows, err := store.ListChunks(ctx, doc.ID, 0)
	require.NoError(t, err)
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	return store, ids
}

func TestSearch_ScanRanksByCosine(t *testing.T) {
	store, ids := seedVectors(t)
	s := NewSearcher(store, staticEmbedder{vec: []float32{1, 0.1}}, nil)

	hits, err := s.Search(context.Background(), "growth", "how do I grow?", 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, ids[0], hits[0].ChunkID)
	assert.Equal(t, ids[2], hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_ExcludedIDsAreSkipped(t *testing.T) {
	store, ids := seedVectors(t)
	s := NewSearcher(store, staticEmbedder{vec: []float32{1, 0}}, nil)

	hits, err := s.Search(context.Background(), "growth", "q", 8, ids[:1])
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotEqual(t, ids[0], h.ChunkID)
		assert.NotEqual(t, ids[3], h.ChunkID)
	}
}

func TestSearch_FallsBackWhenVectorBackendFails(t *testing.T) {
	store, ids := seedVectors(t)
	vectors := &failingVectors{}
	s := NewSearcher(store, staticEmbedder{vec: []float32{0, 1}}, vectors)

	hits, err := s.Search(context.Background(), "growth", "q", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, vectors.calls)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[1], hits[0].ChunkID)
}

func TestSearch_Errors(t *testing.T) {
	store, _ := seedVectors(t)
	ctx := context.Background()

	_, err := NewSearcher(store, staticEmbedder{vec: []float32{1}}, nil).Search(ctx, "unknown", "q", 3, nil)
	assert.ErrorIs(t, err, ErrSourceNotConfigured)

	_, err = NewSearcher(store, staticEmbedder{err: errors.New("down")}, nil).Search(ctx, "growth", "q", 3, nil)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindSearch, re.Kind)

	_, err = NewSearcher(store, staticEmbedder{vec: []float32{1}}, nil).Search(ctx, "growth", "   ", 3, nil)
	assert.Error(t, err)
}

func TestMilvusExpr(t *testing.T) {
	assert.Equal(t, `doc_id == "d1"`, MilvusExpr("d1", nil))
	assert.Equal(t, `doc_id == "d1" && id not in ["a","b"]`, MilvusExpr("d1", []string{"a", "b"}))
}

func TestCosine(t *testing.T) {
	s, ok := cosine([]float32{1, 0}, []float32{2, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, s, 1e-6)

	_, ok = cosine([]float32{1}, []float32{1, 2})
	assert.False(t, ok)
	_, ok = cosine([]float32{0, 0}, []float32{1, 2})
	assert.False(t, ok)
}
