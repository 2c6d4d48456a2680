package models

import (
	"time"

	"github.com/google/uuid"
)

// CodePurpose scopes a one-time code.
type CodePurpose string

const (
	PurposeEmailVerification CodePurpose = "email_verification"
	PurposePasswordReset     CodePurpose = "password_reset"
	PurposePhoneVerification CodePurpose = "phone_verification"
	PurposeLogin             CodePurpose = "login"
)

// OneTimeCode is a short-lived, attempt-limited verification or reset code.
type OneTimeCode struct {
	BaseModel
	Email       string      `gorm:"index:idx_code_subject;not null" json:"email"`
	UserID      *uuid.UUID  `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Purpose     CodePurpose `gorm:"index:idx_code_subject;not null" json:"purpose"`
	Code        string      `gorm:"not null" json:"-"`
	ExpiresAt   time.Time   `gorm:"index" json:"expires_at"`
	Used        bool        `json:"used"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `gorm:"default:5" json:"max_attempts"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CanAttempt reports whether another verification attempt is allowed.
func (c *OneTimeCode) CanAttempt() bool {
	return c.Attempts < c.MaxAttempts
}

// Session backs a bearer token. Validity requires IsActive and now < ExpiresAt.
type Session struct {
	BaseModel
	UserID         uuid.UUID  `gorm:"type:uuid;index:idx_session_user_active;not null" json:"user_id"`
	Token          string     `gorm:"uniqueIndex;not null" json:"-"`
	RefreshToken   *string    `gorm:"uniqueIndex" json:"-"`
	DeviceInfo     DeviceInfo `gorm:"embedded;embeddedPrefix:device_" json:"device_info"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	IsActive       bool       `gorm:"index:idx_session_user_active" json:"is_active"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      time.Time  `gorm:"index" json:"expires_at"`
}

// Valid reports whether the session may authenticate a request at now.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// DeviceInfo describes the client a session was issued to.
type DeviceInfo struct {
	DeviceType  string `json:"device_type"`
	Platform    string `json:"platform"`
	AppVersion  string `json:"app_version,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
	DeviceModel string `json:"device_model,omitempty"`
}

// Normalize fills in the defaults for unknown clients.
func (d DeviceInfo) Normalize() DeviceInfo {
	switch d.DeviceType {
	case "mobile", "tablet", "desktop":
	default:
		d.DeviceType = "unknown"
	}
	switch d.Platform {
	case "ios", "android", "web":
	case "":
		d.Platform = "web"
	default:
		d.Platform = "other"
	}
	return d
}
