package models

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a scheduled meeting with a client.
type Appointment struct {
	BaseModel
	UserID        uuid.UUID         `gorm:"type:uuid;index:idx_appointment_user_date;not null" json:"user_id"`
	Client        AppointmentClient `gorm:"embedded;embeddedPrefix:client_" json:"client"`
	ScheduledDate time.Time         `gorm:"index:idx_appointment_user_date;not null" json:"scheduled_date"`
	Duration      int               `gorm:"default:30" json:"duration"`
	Type          string            `gorm:"default:discovery" json:"type"`
	Status        string            `gorm:"index;default:scheduled" json:"status"`
	Notes         string            `gorm:"size:2000" json:"notes,omitempty"`
	Priority      string            `gorm:"default:medium" json:"priority"`
}

// AppointmentClient is the external party of an appointment.
type AppointmentClient struct {
	Name     string `gorm:"not null" json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

var (
	AppointmentTypes    = []string{"discovery", "demo", "follow_up", "closing", "support", "other"}
	AppointmentStatuses = []string{"scheduled", "confirmed", "in_progress", "completed", "cancelled", "no_show"}
)

// Notification is an in-app message for a user.
type Notification struct {
	BaseModel
	UserID        uuid.UUID  `gorm:"type:uuid;index:idx_notification_user_read;not null" json:"user_id"`
	Type          string     `gorm:"index;not null" json:"type"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Message       string     `gorm:"size:500;not null" json:"message"`
	Read          bool       `gorm:"index:idx_notification_user_read" json:"read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	AppointmentID *uuid.UUID `gorm:"type:uuid" json:"appointment_id,omitempty"`
	RecordingID   *uuid.UUID `gorm:"type:uuid" json:"recording_id,omitempty"`
	ActionURL     string     `json:"action_url,omitempty"`
	Priority      string     `gorm:"default:medium" json:"priority"`
	ExpiresAt     time.Time  `gorm:"index" json:"expires_at"`
}

const (
	NotificationAppointmentCreated = "appointment_created"
	NotificationRecordingUploaded  = "recording_uploaded"
)
