// Package repository holds the gorm-backed stores for users, one-time codes, sessions and the
// CRUD collaborators (appointments, recordings, notifications).
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicate signals a unique constraint violation.
	ErrDuplicate = errors.New("repository: duplicate record")
	// ErrStoreUnavailable signals a store that can never succeed: no handle, or a closed one.
	ErrStoreUnavailable = errors.New("repository: store unavailable")
)

func checkDB(db *gorm.DB) error {
	if db == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// wrap classifies a gorm error and prefixes it with the failing operation.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("repository: %s: %w", op, ErrDuplicate)
	case errors.Is(err, gorm.ErrInvalidDB), errors.Is(err, sql.ErrConnDone), strings.Contains(err.Error(), "database is closed"):
		return fmt.Errorf("repository: %s: %w: %v", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("repository: %s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
