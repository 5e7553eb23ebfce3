package repository

import (
	"context"
	"errors"
	"strings"

	"creator-coach/internal/database"
	"creator-coach/internal/database/model"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*GormStore)(nil)

// GormStore keeps documents and chunks in the relational database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) FindDocument(ctx context.Context, title string, source *string) (*model.Document, error) {
	return findDocument(s.db.WithContext(ctx), title, source)
}

func findDocument(db *gorm.DB, title string, source *string) (*model.Document, error) {
	var doc model.Document
	err := db.Where("title = ? AND source_key = ?", title, model.SourceKey(source)).First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// CreateDocument inserts a document. When a concurrent caller committed the same
// (title, source) first, the existing row is returned instead.
func (s *GormStore) CreateDocument(ctx context.Context, title string, source *string) (*model.Document, error) {
	doc := model.Document{ID: uuid.NewString(), Title: title, Source: source, SourceKey: model.SourceKey(source)}
	err := database.CreateEntity(ctx, s.db, &doc)
	if err == nil {
		return &doc, nil
	}
	if !isDuplicateKey(err) {
		return nil, err
	}
	// a locking read sees the row committed by the other transaction, a snapshot read may not
	return findDocument(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), title, source)
}

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func (s *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := database.GetEntityByID[model.Document](ctx, s.db, id)
	if err != nil {
		return nil, notFound(err)
	}
	return doc, nil
}

func (s *GormStore) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := s.db.WithContext(ctx).Order("title ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *GormStore) DeleteDocument(ctx context.Context, id string) error {
	return database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		n, err := database.DeleteEntityByID[model.Document](ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// escapeLike escapes LIKE wildcards using MySQL's default backslash escape.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *GormStore) FindDocumentByTitlePrefix(ctx context.Context, prefix string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("LOWER(title) LIKE ?", strings.ToLower(escapeLike(prefix))+"%").
		Order("title ASC").Order("created_at ASC").
		First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (s *GormStore) DeleteChunks(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}

func (s *GormStore) InsertChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}
	rows := make([]model.Chunk, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.DocumentID = documentID
		ch.Document = nil
		rows[i] = ch
	}
	return s.db.WithContext(ctx).CreateInBatches(&rows, 100).Error
}

func (s *GormStore) ListChunks(ctx context.Context, documentID string, limit int) ([]model.Chunk, error) {
	q := s.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.Chunk
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
