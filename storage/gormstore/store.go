// Package gormstore is the relational persistence backend. It implements
// every native port over gorm so the same engines run against postgres in
// production and sqlite in tests.
package gormstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sardis/errs"
)

// Store implements the platform persistence ports over a gorm database.
type Store struct {
	db *gorm.DB
}

// New wraps an already-open database. The schema must be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations and diagnostics.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(kind, id)
	}
	return errs.Wrap(errs.CodeInternal, "query "+kind, err)
}

func marshalJSON(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func unmarshalJSON(raw string, out any) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), out)
}
