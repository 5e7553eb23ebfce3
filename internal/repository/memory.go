package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"creator-coach/internal/database/model"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store for development and tests.
// Transactions work on a copy that replaces the live state on commit, so
// writes outside WithTx that race with a transaction may be lost.
type MemoryStore struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	docs   map[string]model.Document
	chunks map[string][]model.Chunk
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]model.Document),
		chunks: make(map[string][]model.Chunk),
		now:    time.Now,
	}
}

func (s *MemoryStore) FindDocument(_ context.Context, title string, source *string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.SourceKey(source)
	for _, d := range s.docs {
		if d.Title == title && d.SourceKey == key {
			doc := d
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

// CreateDocument returns the existing document when (title, source) is already taken.
func (s *MemoryStore) CreateDocument(_ context.Context, title string, source *string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.SourceKey(source)
	for _, d := range s.docs {
		if d.Title == title && d.SourceKey == key {
			doc := d
			return &doc, nil
		}
	}
	now := s.now()
	doc := model.Document{ID: uuid.NewString(), Title: title, Source: source, SourceKey: key, CreatedAt: now, UpdatedAt: now}
	s.docs[doc.ID] = doc
	return &doc, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) FindDocumentByTitlePrefix(_ context.Context, prefix string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	var best *model.Document
	for _, d := range s.docs {
		if !strings.HasPrefix(strings.ToLower(d.Title), prefix) {
			continue
		}
		if best == nil || d.Title < best.Title || (d.Title == best.Title && d.CreatedAt.Before(best.CreatedAt)) {
			doc := d
			best = &doc
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

func (s *MemoryStore) InsertChunks(_ context.Context, documentID string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rows := s.chunks[documentID]
	for _, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.DocumentID = documentID
		ch.Document = nil
		ch.CreatedAt = now
		rows = append(rows, ch)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ChunkIndex < rows[j].ChunkIndex })
	s.chunks[documentID] = rows
	return nil
}

func (s *MemoryStore) ListChunks(_ context.Context, documentID string, limit int) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.chunks[documentID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]model.Chunk, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemoryStore) clone() *MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &MemoryStore{
		docs:   make(map[string]model.Document, len(s.docs)),
		chunks: make(map[string][]model.Chunk, len(s.chunks)),
		now:    s.now,
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.chunks {
		c.chunks[k] = append([]model.Chunk(nil), v...)
	}
	return c
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := s.clone()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.docs, s.chunks = tx.docs, tx.chunks
	s.mu.Unlock()
	return nil
}
