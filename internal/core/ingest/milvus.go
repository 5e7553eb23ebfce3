package ingest

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"creator-coach/config"
	"creator-coach/internal/database/model"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Field names of the chunk collection, shared with the retriever.
const (
	FieldID         = "id"
	FieldDocID      = "doc_id"
	FieldChunkIndex = "chunk_index"
	FieldContent    = "content"
	FieldEmbedding  = "embedding"

	milvusIDLength      = 36
	milvusContentLength = 65535
)

// MilvusIndex mirrors committed chunks into a Milvus collection for ANN search.
// The relational store stays authoritative.
type MilvusIndex struct {
	cli        milvusclient.Client
	collection string
	dim        int
}

// NewMilvusIndex makes sure the collection, its HNSW index and its load state exist.
func NewMilvusIndex(ctx context.Context, cli milvusclient.Client, collection string, dim int) (*MilvusIndex, error) {
	if collection == "" {
		collection = "advice_chunks"
	}
	idx := &MilvusIndex{cli: cli, collection: collection, dim: dim}

	exists, err := cli.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := idx.createCollection(ctx); err != nil {
			return nil, err
		}
	}
	if err := cli.LoadCollection(ctx, collection, false); err != nil {
		return nil, err
	}
	return idx, nil
}

func (m *MilvusIndex) createCollection(ctx context.Context) error {
	schema := milvusentity.NewSchema().WithName(m.collection).WithDescription("document chunks")
	schema.WithField(milvusentity.NewField().WithName(FieldID).WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusIDLength).WithIsPrimaryKey(true))
	schema.WithField(milvusentity.NewField().WithName(FieldDocID).WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusIDLength))
	schema.WithField(milvusentity.NewField().WithName(FieldChunkIndex).WithDataType(milvusentity.FieldTypeInt32))
	schema.WithField(milvusentity.NewField().WithName(FieldContent).WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusContentLength))
	schema.WithField(milvusentity.NewField().WithName(FieldEmbedding).WithDataType(milvusentity.FieldTypeFloatVector).WithDim(int64(m.dim)))

	if err := m.cli.CreateCollection(ctx, schema, 2); err != nil {
		return err
	}

	hnsw := config.Cfg.Milvus.IndexHNSWConfig
	index, err := milvusentity.NewIndexHNSW(milvusentity.MetricType(hnsw.MetricType), hnsw.M, hnsw.EfConstruction)
	if err != nil {
		return err
	}
	return m.cli.CreateIndex(ctx, m.collection, FieldEmbedding, index, false)
}

// DocFilter is the boolean expression selecting one document's rows.
func DocFilter(documentID string) string {
	return FieldDocID + " == " + strconv.Quote(documentID)
}

// Replace drops every row of the document and inserts chunks in their place.
func (m *MilvusIndex) Replace(ctx context.Context, documentID string, chunks []model.Chunk) error {
	if err := m.cli.Delete(ctx, m.collection, "", DocFilter(documentID)); err != nil {
		return fmt.Errorf("milvus delete: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	ordinals := make([]int32, len(chunks))
	contents := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) != m.dim {
			return fmt.Errorf("milvus insert: chunk %d has dim %d, collection expects %d", ch.ChunkIndex, len(ch.Embedding), m.dim)
		}
		ids[i] = ch.ID
		docIDs[i] = documentID
		ordinals[i] = int32(ch.ChunkIndex)
		contents[i] = truncateBytes(ch.Content, milvusContentLength)
		vectors[i] = ch.Embedding
	}

	_, err := m.cli.Insert(ctx, m.collection, "",
		milvusentity.NewColumnVarChar(FieldID, ids),
		milvusentity.NewColumnVarChar(FieldDocID, docIDs),
		milvusentity.NewColumnInt32(FieldChunkIndex, ordinals),
		milvusentity.NewColumnVarChar(FieldContent, contents),
		milvusentity.NewColumnFloatVector(FieldEmbedding, m.dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus insert: %w", err)
	}
	return m.cli.Flush(ctx, m.collection, false)
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
