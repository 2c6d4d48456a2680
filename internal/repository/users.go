package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// UserStore persists user identities and credentials.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore constructs a UserStore.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts user; a taken email yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	return wrap("create user", s.db.WithContext(ctx).Create(user).Error)
}

// FindByEmail returns the user registered under email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrap("find user by email", err)
	}
	return &user, nil
}

// FindByID returns the user with id.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrap("find user by id", err)
	}
	return &user, nil
}

// EmailExists reports whether email is already registered.
func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := checkDB(s.db); err != nil {
		return false, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, wrap("count users by email", err)
	}
	return count > 0, nil
}

// MarkEmailVerified flags the email as verified and stamps the login time.
func (s *UserStore) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.update(ctx, "mark email verified", id, map[string]interface{}{
		"is_email_verified": true,
		"last_login_at":     at,
	})
}

// TouchLastLogin stamps the last login time.
func (s *UserStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.update(ctx, "touch last login", id, map[string]interface{}{"last_login_at": at})
}

// UpdatePasswordHash replaces the stored hash.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return s.update(ctx, "update password", id, map[string]interface{}{"password_hash": hash})
}

// UpdateProfile applies the non-empty profile fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) error {
	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if phone != "" {
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		return nil
	}
	return s.update(ctx, "update profile", id, updates)
}

// UpdateStats overwrites the denormalised stats snapshot.
func (s *UserStore) UpdateStats(ctx context.Context, id uuid.UUID, stats models.UserStats) error {
	return s.update(ctx, "update stats", id, map[string]interface{}{
		"stats_total_recordings":    stats.TotalRecordings,
		"stats_total_appointments":  stats.TotalAppointments,
		"stats_avg_spin_score":      stats.AvgSpinScore,
		"stats_total_call_duration": stats.TotalCallDuration,
	})
}

func (s *UserStore) update(ctx context.Context, op string, id uuid.UUID, updates map[string]interface{}) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return wrap(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
