// Package ingest turns an uploaded file into a stored, embedded set of chunks.
package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"creator-coach/config"
	coreingest "creator-coach/internal/core/ingest"
	"creator-coach/internal/database/model"
	"creator-coach/internal/repository"
	"creator-coach/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Embedder maps one chunk of text to its vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex receives a copy of every committed chunk set.
type VectorIndex interface {
	Replace(ctx context.Context, documentID string, chunks []model.Chunk) error
}

// Archiver keeps the original upload bytes.
type Archiver interface {
	Archive(ctx context.Context, data []byte, fileName, mediaType string) (string, error)
}

// Limits bounds what a single ingestion may cost.
type Limits struct {
	MaxFileBytes int64
	MaxWords     int
	OverlapWords int
	MaxChunks    int
	// EmbedConcurrency is the number of embedding calls in flight; values below 2 embed sequentially.
	EmbedConcurrency int
}

func LimitsFromConfig() Limits {
	c := config.Cfg.Ingest
	return Limits{
		MaxFileBytes:     c.MaxFileBytes,
		MaxWords:         c.MaxWords,
		OverlapWords:     c.OverlapWords,
		MaxChunks:        c.MaxChunks,
		EmbedConcurrency: c.EmbedConcurrency,
	}
}

// Upload is one file handed to the pipeline.
type Upload struct {
	Data      []byte
	FileName  string
	MediaType string
	Title     string
	Source    *string
}

type Result struct {
	DocumentID     string `json:"document_id"`
	ChunksInserted int    `json:"chunks_inserted"`
}

type Option func(*Pipeline)

// WithVectorIndex mirrors committed chunks into idx.
func WithVectorIndex(idx VectorIndex) Option {
	return func(p *Pipeline) { p.index = idx }
}

// WithArchiver stores the raw bytes of every successful upload.
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

type Pipeline struct {
	store    repository.Store
	embedder Embedder
	limits   Limits
	index    VectorIndex
	archiver Archiver
}

func NewPipeline(store repository.Store, embedder Embedder, limits Limits, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, embedder: embedder, limits: limits}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest extracts, chunks and embeds the upload, then replaces the chunks of the
// (title, source) document in one transaction. Nothing is written unless every
// chunk was embedded.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (Result, error) {
	title := strings.TrimSpace(up.Title)
	if title == "" {
		return Result{}, newError(KindInvalidInput, nil, "title is required")
	}
	source := trimSource(up.Source)
	if len(up.Data) == 0 {
		return Result{}, newError(KindInvalidInput, nil, "file is empty")
	}
	if p.limits.MaxFileBytes > 0 && int64(len(up.Data)) > p.limits.MaxFileBytes {
		return Result{}, newError(KindFileTooLarge, nil, "file is %d bytes, the limit is %d", len(up.Data), p.limits.MaxFileBytes)
	}

	log := logger.Module(config.ModuleIngest).WithField("title", title)
	start := time.Now()

	ex := coreingest.Extract(up.Data, up.MediaType, up.FileName)
	if !ex.Supported() {
		return Result{}, newError(KindUnsupportedMediaType, nil, "files of type %q are not supported, upload a PDF or plain text file", up.MediaType)
	}
	text := Normalize(ex.Text)
	if text == "" {
		return Result{}, newError(KindEmptyExtraction, nil, "no readable text was found in the file")
	}

	chunks, complete := BuildChunks(text, p.limits.MaxWords, p.limits.OverlapWords, p.limits.MaxChunks)
	if len(chunks) == 0 {
		return Result{}, newError(KindChunkingProducedNothing, nil, "text could not be split into chunks")
	}
	if !complete {
		return Result{}, newError(KindTooManyChunks, nil, "document needs more than %d chunks", p.limits.MaxChunks)
	}
	log.WithFields(map[string]interface{}{
		"format": ex.Format,
		"chunks": len(chunks),
	}).Info("ingest: chunks built")

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return Result{}, err
	}
	if len(vectors) != len(chunks) {
		return Result{}, newError(KindStoreInconsistency, nil, "%d chunks but %d embeddings", len(chunks), len(vectors))
	}

	rows := make([]model.Chunk, len(chunks))
	for i := range chunks {
		rows[i] = model.Chunk{
			ID:         uuid.NewString(),
			ChunkIndex: i,
			Content:    chunks[i],
			Embedding:  vectors[i],
		}
	}

	var docID string
	err = p.store.WithTx(ctx, func(tx repository.Store) error {
		doc, err := tx.FindDocument(ctx, title, source)
		if errors.Is(err, repository.ErrNotFound) {
			doc, err = tx.CreateDocument(ctx, title, source)
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteChunks(ctx, doc.ID); err != nil {
			return err
		}
		for i := range rows {
			rows[i].DocumentID = doc.ID
		}
		docID = doc.ID
		return tx.InsertChunks(ctx, doc.ID, rows)
	})
	if err != nil {
		return Result{}, newError(KindStore, err, "storing chunks failed")
	}

	log = log.WithField("doc_id", docID)
	if p.index != nil {
		if err := p.index.Replace(ctx, docID, rows); err != nil {
			log.WithField("error", err.Error()).Warn("ingest: vector index mirror failed")
		}
	}
	if p.archiver != nil {
		if key, err := p.archiver.Archive(ctx, up.Data, up.FileName, up.MediaType); err != nil {
			log.WithField("error", err.Error()).Warn("ingest: archive failed")
		} else {
			log = log.WithField("archive_key", key)
		}
	}

	log.WithFields(map[string]interface{}{
		"chunks":     len(rows),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("ingest: done")
	return Result{DocumentID: docID, ChunksInserted: len(rows)}, nil
}

// embedAll returns one vector per chunk in chunk order. Calls run with up to
// EmbedConcurrency in flight; each result lands in its chunk's slot, so the order
// holds however calls interleave. The first failure cancels the rest.
func (p *Pipeline) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.limits.EmbedConcurrency))

	for i, text := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := p.embedder.Embed(gctx, text)
			if err != nil {
				return newError(KindEmbedding, err, "embedding chunk %d failed", i)
			}
			if len(vec) == 0 {
				return newError(KindEmbedding, nil, "embedding chunk %d returned an empty vector", i)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ie *Error
		if errors.As(err, &ie) {
			return nil, ie
		}
		return nil, newError(KindEmbedding, err, "embedding aborted")
	}
	return vectors, nil
}

func trimSource(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
