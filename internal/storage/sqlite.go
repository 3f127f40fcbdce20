package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entry is a single durable key/value row.
type entry struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (entry) TableName() string { return "kv_entries" }

// SQLite is the durable tier, backed by a SQLite file in the client state
// directory. The driver is pure Go, so the store works wherever the client
// does.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the durable store under dir.
func OpenSQLite(dir string) (*SQLite, error) {
	path := filepath.Join(dir, "portal-state.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate durable store: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var e entry
	err := s.db.First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	e := entry{Key: key, Value: value}
	return s.db.Save(&e).Error
}

func (s *SQLite) Delete(key string) error {
	return s.db.Delete(&entry{}, "key = ?", key).Error
}
