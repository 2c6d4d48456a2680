package models

import (
	"time"
)

// Role is the user's position in the sales organisation.
type Role string

const (
	RoleSalesRep Role = "sales_rep"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSalesRep, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User represents a sales team member.
type User struct {
	BaseModel
	Name            string          `gorm:"not null" json:"name"`
	Email           string          `gorm:"uniqueIndex;not null" json:"email"`
	Phone           string          `json:"phone"`
	PasswordHash    string          `gorm:"not null" json:"-"`
	Role            Role            `gorm:"index;default:sales_rep" json:"role"`
	Company         string          `json:"company,omitempty"`
	Department      string          `json:"department,omitempty"`
	ProfileImage    string          `json:"profile_image,omitempty"`
	IsEmailVerified bool            `json:"is_email_verified"`
	IsPhoneVerified bool            `json:"is_phone_verified"`
	IsActive        bool            `gorm:"index;default:true" json:"is_active"`
	LastLoginAt     *time.Time      `json:"last_login_at,omitempty"`
	Preferences     UserPreferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	Stats           UserStats       `gorm:"embedded;embeddedPrefix:stats_" json:"stats"`
}

// UserPreferences keeps notification and locale settings.
type UserPreferences struct {
	NotifyEmail bool   `gorm:"default:true" json:"notify_email"`
	NotifyPush  bool   `json:"notify_push"`
	NotifySMS   bool   `json:"notify_sms"`
	Language    string `gorm:"default:en" json:"language"`
	Timezone    string `gorm:"default:UTC" json:"timezone"`
}

// UserStats is a denormalised snapshot of dashboard figures. It is a cache and may lag the live data.
type UserStats struct {
	TotalRecordings   int64   `json:"total_recordings"`
	TotalAppointments int64   `json:"total_appointments"`
	AvgSpinScore      int     `json:"avg_spin_score"`
	TotalCallDuration float64 `json:"total_call_duration"`
}

// DefaultPreferences returns the settings of a new account.
func DefaultPreferences() UserPreferences {
	return UserPreferences{NotifyEmail: true, Language: "en", Timezone: "UTC"}
}
