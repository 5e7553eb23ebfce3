package database

import (
	"context"

	"gorm.io/gorm"
)

// CreateEntity creates a record for the provided entity type.
func CreateEntity[T any](ctx context.Context, db *gorm.DB, entity *T) error {
	return db.WithContext(ctx).Create(entity).Error
}

// GetEntityByID returns a single record of type T by its primary key id.
func GetEntityByID[T any, ID comparable](ctx context.Context, db *gorm.DB, id ID) (*T, error) {
	var out T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEntityByID deletes a record of type T by its primary key id and reports the affected row count.
func DeleteEntityByID[T any, ID comparable](ctx context.Context, db *gorm.DB, id ID) (int64, error) {
	var zero T
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&zero)
	return res.RowsAffected, res.Error
}

// WithTx runs fn inside a transaction on db.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
