// Package repository persists documents and their embedded chunks.
package repository

import (
	"context"
	"errors"

	"creator-coach/internal/database/model"
)

var (
	// ErrNotFound is returned when a document lookup matches nothing.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidChunk is returned by InsertChunks for a chunk without text or embedding.
	ErrInvalidChunk = errors.New("repository: chunk has empty content or embedding")
)

// Store is the keyed document/chunk store used by ingestion and serving.
//
// A nil source is compared with IS NULL semantics, so (title, nil) and (title, "")
// are different identities.
type Store interface {
	FindDocument(ctx context.Context, title string, source *string) (*model.Document, error)
	CreateDocument(ctx context.Context, title string, source *string) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// FindDocumentByTitlePrefix matches the title case-insensitively.
	FindDocumentByTitlePrefix(ctx context.Context, prefix string) (*model.Document, error)

	DeleteChunks(ctx context.Context, documentID string) error
	// InsertChunks writes chunks in the given order. IDs are generated when empty.
	InsertChunks(ctx context.Context, documentID string, chunks []model.Chunk) error
	// ListChunks returns at most limit chunks ordered by ChunkIndex. limit <= 0 means no limit.
	ListChunks(ctx context.Context, documentID string, limit int) ([]model.Chunk, error)

	// WithTx runs fn against a transactional view of the store. Nothing fn wrote
	// is visible to other callers unless fn returns nil.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

func validateChunks(chunks []model.Chunk) error {
	for i := range chunks {
		if chunks[i].Content == "" || len(chunks[i].Embedding) == 0 {
			return ErrInvalidChunk
		}
	}
	return nil
}
