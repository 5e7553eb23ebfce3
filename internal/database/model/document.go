package model

import "time"

// Document is the identity a batch of chunks hangs off. (Title, Source) is unique,
// with a nil Source meaning SQL NULL rather than the empty string. Titles compare
// case-sensitively. Unique indexes accept repeated NULLs, so the identity index is
// built on SourceKey, which always holds SourceKey(Source).
type Document struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;not null;uniqueIndex:idx_documents_title_source,priority:1" json:"title"`
	Source    *string   `gorm:"type:varchar(255)" json:"source,omitempty"`
	SourceKey string    `gorm:"type:varchar(260) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;not null;uniqueIndex:idx_documents_title_source,priority:2" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// SourceKey encodes an optional source as a non-null value: "" for nil and
// "s:"+source otherwise, so nil and the empty string stay distinct.
func SourceKey(source *string) string {
	if source == nil {
		return ""
	}
	return "s:" + *source
}
