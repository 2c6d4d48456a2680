package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// NotificationStore persists in-app notifications.
type NotificationStore struct {
	db *gorm.DB
}

// NewNotificationStore constructs a NotificationStore.
func NewNotificationStore(db *gorm.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create inserts a notification.
func (s *NotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	return wrap("create notification", s.db.WithContext(ctx).Create(notification).Error)
}

// List returns the user's notifications, newest first.
func (s *NotificationStore) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var notifications []models.Notification
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&notifications).Error; err != nil {
		return nil, wrap("list notifications", err)
	}
	return notifications, nil
}

// UnreadCount returns how many unread notifications the user has.
func (s *NotificationStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, wrap("count unread notifications", err)
}

// MarkRead marks one notification of userID as read.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	var notification models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return wrap("get notification", err)
	}
	if notification.Read {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&notification).Updates(map[string]interface{}{"read": true, "read_at": at}).Error
	return wrap("mark notification read", err)
}

// MarkAllRead marks every unread notification of userID as read.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	return result.RowsAffected, wrap("mark all notifications read", result.Error)
}
