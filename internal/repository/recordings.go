package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// RecordingFilter narrows recording reads. Nil bounds are open.
type RecordingFilter struct {
	UserID         uuid.UUID
	ExcludeDeleted bool
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// RecordingStore persists call recordings and their analysis documents.
type RecordingStore struct {
	db *gorm.DB
}

// NewRecordingStore constructs a RecordingStore.
func NewRecordingStore(db *gorm.DB) *RecordingStore {
	return &RecordingStore{db: db}
}

// Create inserts a recording.
func (s *RecordingStore) Create(ctx context.Context, recording *models.Recording) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	return wrap("create recording", s.db.WithContext(ctx).Create(recording).Error)
}

// Find returns the recordings matching filter in insertion order.
func (s *RecordingStore) Find(ctx context.Context, filter RecordingFilter) ([]models.Recording, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var recordings []models.Recording
	if err := s.query(ctx, filter).Order("created_at asc").Find(&recordings).Error; err != nil {
		return nil, wrap("find recordings", err)
	}
	return recordings, nil
}

// List returns a page of recordings matching filter, newest first.
func (s *RecordingStore) List(ctx context.Context, filter RecordingFilter) ([]models.Recording, int64, error) {
	if err := checkDB(s.db); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.query(ctx, filter).Model(&models.Recording{}).Count(&total).Error; err != nil {
		return nil, 0, wrap("count recordings", err)
	}
	var recordings []models.Recording
	q := s.query(ctx, filter).Order("created_at desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&recordings).Error; err != nil {
		return nil, 0, wrap("list recordings", err)
	}
	return recordings, total, nil
}

// Get returns the recording id owned by userID.
func (s *RecordingStore) Get(ctx context.Context, userID, id uuid.UUID) (*models.Recording, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var recording models.Recording
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status <> ?", id, userID, models.RecordingDeleted).
		First(&recording).Error
	if err != nil {
		return nil, wrap("get recording", err)
	}
	return &recording, nil
}

// SoftDelete flags the recording as deleted; it stays in storage but drops out of every read.
func (s *RecordingStore) SoftDelete(ctx context.Context, userID, id uuid.UUID) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.Recording{}).
		Where("id = ? AND user_id = ? AND status <> ?", id, userID, models.RecordingDeleted).
		Update("status", models.RecordingDeleted)
	if result.Error != nil {
		return wrap("delete recording", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RecordingStore) query(ctx context.Context, filter RecordingFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.ExcludeDeleted {
		q = q.Where("status <> ?", models.RecordingDeleted)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}
	return q
}
