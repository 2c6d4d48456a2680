package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
)

// AppointmentFilter narrows appointment reads by owner, status and scheduled date.
type AppointmentFilter struct {
	UserID uuid.UUID
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// AppointmentStore persists appointments.
type AppointmentStore struct {
	db *gorm.DB
}

// NewAppointmentStore constructs an AppointmentStore.
func NewAppointmentStore(db *gorm.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

// Create inserts an appointment.
func (s *AppointmentStore) Create(ctx context.Context, appointment *models.Appointment) error {
	if err := checkDB(s.db); err != nil {
		return err
	}
	return wrap("create appointment", s.db.WithContext(ctx).Create(appointment).Error)
}

// Count returns how many appointments match filter.
func (s *AppointmentStore) Count(ctx context.Context, filter AppointmentFilter) (int64, error) {
	if err := checkDB(s.db); err != nil {
		return 0, err
	}
	var count int64
	if err := s.query(ctx, filter).Model(&models.Appointment{}).Count(&count).Error; err != nil {
		return 0, wrap("count appointments", err)
	}
	return count, nil
}

// Find returns appointments matching filter, earliest first.
func (s *AppointmentStore) Find(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	q := s.query(ctx, filter).Order("scheduled_date asc").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var appointments []models.Appointment
	if err := q.Find(&appointments).Error; err != nil {
		return nil, wrap("find appointments", err)
	}
	return appointments, nil
}

// Get returns the appointment id owned by userID.
func (s *AppointmentStore) Get(ctx context.Context, userID, id uuid.UUID) (*models.Appointment, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	var appointment models.Appointment
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&appointment).Error; err != nil {
		return nil, wrap("get appointment", err)
	}
	return &appointment, nil
}

// Update applies status and notes when non-empty and returns the stored record.
func (s *AppointmentStore) Update(ctx context.Context, userID, id uuid.UUID, status, notes string) (*models.Appointment, error) {
	if err := checkDB(s.db); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if status != "" {
		updates["status"] = status
	}
	if notes != "" {
		updates["notes"] = notes
	}
	result := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return nil, wrap("update appointment", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

func (s *AppointmentStore) query(ctx context.Context, filter AppointmentFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("scheduled_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("scheduled_date <= ?", *filter.To)
	}
	return q
}
