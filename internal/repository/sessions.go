package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// SessionStore persists login sessions. Every deactivation is a conditional
// "is_active = true -> false" update, so concurrent revokers converge without locks.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	return wrap("create session", s.db.WithContext(ctx).Create(session).Error)
}

// FindByToken returns the session backing token.
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var session models.Session
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, wrap("find session by token", err)
	}
	return &session, nil
}

// Touch records activity on the session. It never changes expires_at.
func (s *SessionStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		UpdateColumn("last_activity_at", at).Error
	return wrap("touch session", err)
}

// Revoke deactivates one session. Revoking an inactive session is a no-op.
func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := checkDB(s.db); err != nil {
		return false, err
	}
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, wrap("revoke session", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RevokeAllExcept deactivates every active session of userID other than the one holding keepToken.
func (s *SessionStore) RevokeAllExcept(ctx context.Context, userID uuid.UUID, keepToken string) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_active = ? AND token <> ?", userID, true, keepToken).
		Update("is_active", false)
	return result.RowsAffected, wrap("revoke other sessions", result.Error)
}

// RevokeAll deactivates every active session of userID.
func (s *SessionStore) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	return result.RowsAffected, wrap("revoke user sessions", result.Error)
}

// ListActive returns the user's active, unexpired sessions, most recently used first.
func (s *SessionStore) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Order("last_activity_at desc").
		Find(&sessions).Error
	if err != nil {
		return nil, wrap("list active sessions", err)
	}
	return sessions, nil
}

// RevokeExpired deactivates every active session whose expiry is before now.
// Running it repeatedly over the same data yields the same state.
func (s *SessionStore) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, wrap("revoke expired sessions", result.Error)
}

// DeleteInactiveBefore removes revoked sessions last updated before cutoff.
func (s *SessionStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.Session{})
	return result.RowsAffected, wrap("delete inactive sessions", result.Error)
}
