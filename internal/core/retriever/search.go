package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"creator-coach/config"
	"creator-coach/internal/core/ingest"
	"creator-coach/internal/repository"
	"creator-coach/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const defaultTopK = 8

// VectorSearcher ranks one document's chunks against a query vector.
type VectorSearcher interface {
	SearchDocument(ctx context.Context, documentID string, query []float32, topK int, excluded []string) ([]Hit, error)
}

// Searcher answers semantic queries scoped to one document.
// The vector backend is tried first; without one, or when it fails, the stored
// embeddings are scanned.
type Searcher struct {
	store    repository.Store
	embedder Embedder
	vectors  VectorSearcher
	scan     *ScanSearcher
}

func NewSearcher(store repository.Store, embedder Embedder, vectors VectorSearcher) *Searcher {
	return &Searcher{store: store, embedder: embedder, vectors: vectors, scan: NewScanSearcher(store)}
}

// Search resolves title as a case-insensitive prefix, embeds question and returns
// up to topK chunks that are not in excluded.
func (s *Searcher) Search(ctx context.Context, title, question string, topK int, excluded []string) ([]Hit, error) {
	if topK <= 0 || topK > 64 {
		topK = defaultTopK
	}
	doc, err := s.store.FindDocumentByTitlePrefix(ctx, strings.TrimSpace(title))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &Error{Kind: KindSourceNotConfigured, Message: fmt.Sprintf("no document matches %q", title)}
	}
	if err != nil {
		return nil, &Error{Kind: KindSearch, Message: "document lookup failed", Err: err}
	}

	vec, err := EmbedQuestion(ctx, s.embedder, question)
	if err != nil {
		return nil, &Error{Kind: KindSearch, Message: "embedding the question failed", Err: err}
	}

	if s.vectors != nil {
		hits, err := s.vectors.SearchDocument(ctx, doc.ID, vec, topK, excluded)
		if err == nil {
			return hits, nil
		}
		logger.Module(config.ModuleRetriever).WithFields(map[string]interface{}{
			"doc_id": doc.ID,
			"error":  err.Error(),
		}).Warn("vector search failed, scanning stored embeddings")
	}
	hits, err := s.scan.SearchDocument(ctx, doc.ID, vec, topK, excluded)
	if err != nil {
		return nil, &Error{Kind: KindSearch, Message: "search failed", Err: err}
	}
	return hits, nil
}

// ScanSearcher scores every stored chunk of a document by cosine similarity.
type ScanSearcher struct {
	store repository.Store
}

func NewScanSearcher(store repository.Store) *ScanSearcher {
	return &ScanSearcher{store: store}
}

func (s *ScanSearcher) SearchDocument(ctx context.Context, documentID string, query []float32, topK int, excluded []string) ([]Hit, error) {
	chunks, err := s.store.ListChunks(ctx, documentID, 0)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		score, ok := cosine(query, c.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:    c.ID,
			DocumentID: documentID,
			ChunkIndex: c.ChunkIndex,
			Score:      score,
			Content:    c.Content,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosine is false for vectors of different length or zero norm.
func cosine(a, b []float32) (float32, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), true
}

// MilvusSearcher runs HNSW searches against the chunk collection written at ingestion.
type MilvusSearcher struct {
	cli        milvusclient.Client
	collection string
	metric     milvusentity.MetricType
	ef         int
	timeout    time.Duration
}

func NewMilvusSearcher(cli milvusclient.Client) *MilvusSearcher {
	hnsw := config.Cfg.Milvus.IndexHNSWConfig
	ef := hnsw.Ef
	if ef <= 0 {
		ef = 64
	}
	return &MilvusSearcher{
		cli:        cli,
		collection: config.Cfg.Milvus.Collection,
		metric:     milvusentity.MetricType(hnsw.MetricType),
		ef:         ef,
		timeout:    time.Second,
	}
}

func (m *MilvusSearcher) SearchDocument(ctx context.Context, documentID string, query []float32, topK int, excluded []string) ([]Hit, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	searchParam, err := milvusentity.NewIndexHNSWSearchParam(m.ef)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := m.cli.Search(
		ctx,
		m.collection,
		nil,
		MilvusExpr(documentID, excluded),
		[]string{ingest.FieldDocID, ingest.FieldChunkIndex, ingest.FieldContent},
		[]milvusentity.Vector{milvusentity.FloatVector(query)},
		ingest.FieldEmbedding,
		m.metric,
		topK,
		searchParam,
	)
	if err != nil {
		return nil, err
	}
	logger.Module(config.ModuleMilvus).WithFields(map[string]interface{}{
		"doc_id":     documentID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("milvus search done")

	if len(results) == 0 {
		return []Hit{}, nil
	}
	it := results[0]
	hits := make([]Hit, 0, it.ResultCount)
	for i := 0; i < it.ResultCount; i++ {
		h := Hit{DocumentID: documentID, Score: it.Scores[i]}
		if ids, ok := it.IDs.(*milvusentity.ColumnVarChar); ok {
			h.ChunkID = ids.Data()[i]
		}
		for _, field := range it.Fields {
			switch col := field.(type) {
			case *milvusentity.ColumnInt32:
				if col.Name() == ingest.FieldChunkIndex {
					h.ChunkIndex = int(col.Data()[i])
				}
			case *milvusentity.ColumnVarChar:
				if col.Name() == ingest.FieldContent {
					h.Content = col.Data()[i]
				}
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// MilvusExpr filters to one document and drops excluded chunk ids.
func MilvusExpr(documentID string, excluded []string) string {
	var b strings.Builder
	b.WriteString(ingest.DocFilter(documentID))
	if len(excluded) == 0 {
		return b.String()
	}
	b.WriteString(" && ")
	b.WriteString(ingest.FieldID)
	b.WriteString(" not in [")
	for i, id := range excluded {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(id))
	}
	b.WriteByte(']')
	return b.String()
}
