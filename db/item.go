package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is one entry of the key/value store.
type Item struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

// KeyValueStore is a string key/value store in the database. It implements
// auth.MetadataStorage.
type KeyValueStore struct{ db *gorm.DB }

// NewKeyValueStore creates a KeyValueStore. Accepts *gorm.DB to avoid global access.
func NewKeyValueStore(db *gorm.DB) *KeyValueStore { return &KeyValueStore{db: db} }

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("key/value store not initialized")
	}
	var item Item
	err := s.db.WithContext(ctx).First(&item, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read item %s: %w", key, err)
	}
	return item.Value, nil
}

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("key/value store not initialized")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&Item{Name: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to store item %s: %w", key, err)
	}
	return nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	if s.db == nil {
		return fmt.Errorf("key/value store not initialized")
	}
	if err := s.db.WithContext(ctx).Delete(&Item{}, "name = ?", key).Error; err != nil {
		return fmt.Errorf("failed to remove item %s: %w", key, err)
	}
	return nil
}
