package model

import (
	"time"

	"gorm.io/datatypes"
)

// Chunk is one word window of a document's normalized text together with its embedding.
// ChunkIndex is 0-based and contiguous within a document.
type Chunk struct {
	ID         string                       `gorm:"type:char(36);primaryKey" json:"id"`
	DocumentID string                       `gorm:"type:char(36);not null;index:idx_chunks_document_ordinal,priority:1" json:"document_id"`
	Document   *Document                    `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"-"`
	ChunkIndex int                          `gorm:"not null;index:idx_chunks_document_ordinal,priority:2" json:"chunk_index"`
	Content    string                       `gorm:"type:text;not null" json:"content"`
	Embedding  datatypes.JSONSlice[float32] `gorm:"not null" json:"-"`
	CreatedAt  time.Time                    `json:"created_at"`
}

func (Chunk) TableName() string {
	return "chunks"
}
