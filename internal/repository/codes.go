package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// CodeStore persists one-time verification and reset codes.
type CodeStore struct {
	db *gorm.DB
}

// NewCodeStore constructs a CodeStore.
func NewCodeStore(db *gorm.DB) *CodeStore {
	return &CodeStore{db: db}
}

// Issue stores code after marking every earlier unused code for the same (email, purpose) as used,
// so only the newest code is ever authoritative.
func (s *CodeStore) Issue(ctx context.Context, code *models.OneTimeCode) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OneTimeCode{}).
			Where("email = ? AND purpose = ? AND used = ?", code.Email, code.Purpose, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(code).Error
	})
	return wrap("issue code", err)
}

// Latest returns the most recently issued code for (email, purpose), used or not.
func (s *CodeStore) Latest(ctx context.Context, email string, purpose models.CodePurpose) (*models.OneTimeCode, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var code models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		Order("created_at desc").
		First(&code).Error
	if err != nil {
		return nil, wrap("latest code", err)
	}
	return &code, nil
}

// LatestUnused returns the newest unused code for (email, purpose).
func (s *CodeStore) LatestUnused(ctx context.Context, email string, purpose models.CodePurpose) (*models.OneTimeCode, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var code models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND used = ?", email, purpose, false).
		Order("created_at desc").
		First(&code).Error
	if err != nil {
		return nil, wrap("latest unused code", err)
	}
	return &code, nil
}

// IncrementAttempts bumps the attempt counter in a single statement and returns the new value.
func (s *CodeStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.OneTimeCode{}).Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
		return 0, wrap("increment attempts", err)
	}
	var attempts int
	if err := db.Model(&models.OneTimeCode{}).Where("id = ?", id).Select("attempts").Scan(&attempts).Error; err != nil {
		return 0, wrap("read attempts", err)
	}
	return attempts, nil
}

// MarkUsed consumes the code. It reports false when the code was already used.
func (s *CodeStore) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := checkDB(s.db); err != nil {
		return false, err
	}
	result := s.db.WithContext(ctx).Model(&models.OneTimeCode{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		return false, wrap("mark code used", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteExpiredBefore removes codes whose expiry is older than cutoff.
func (s *CodeStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.OneTimeCode{})
	return result.RowsAffected, wrap("delete expired codes", result.Error)
}
