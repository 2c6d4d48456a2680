package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecordingStatus tracks the lifecycle of a recording record.
type RecordingStatus string

const (
	RecordingActive   RecordingStatus = "active"
	RecordingArchived RecordingStatus = "archived"
	RecordingDeleted  RecordingStatus = "deleted"
)

// Recording is an uploaded sales call together with the analysis produced by the external service.
type Recording struct {
	BaseModel
	UserID        uuid.UUID                            `gorm:"type:uuid;index:idx_recording_user_created;not null" json:"user_id"`
	AppointmentID *uuid.UUID                           `gorm:"type:uuid;index" json:"appointment_id,omitempty"`
	Title         string                               `gorm:"not null" json:"title"`
	Description   string                               `gorm:"size:1000" json:"description,omitempty"`
	Audio         RecordingAudio                       `gorm:"embedded;embeddedPrefix:audio_" json:"audio"`
	ClientName    string                               `json:"client_name,omitempty"`
	ClientCompany string                               `json:"client_company,omitempty"`
	Status        RecordingStatus                      `gorm:"index;default:active" json:"status"`
	Tags          datatypes.JSONSlice[string]          `json:"tags,omitempty"`
	Notes         string                               `gorm:"size:5000" json:"notes,omitempty"`
	Analysis      datatypes.JSONType[RecordingAnalysis] `json:"analysis"`
}

// RecordingAudio references the stored audio file.
type RecordingAudio struct {
	FileName string  `json:"file_name"`
	FileURL  string  `json:"file_url"`
	FileSize int64   `json:"file_size"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format,omitempty"`
}

// RecordingAnalysis is stored as an opaque JSON document. Pointers distinguish absent scores from zero.
type RecordingAnalysis struct {
	Status      string             `json:"status,omitempty"`
	ProcessedAt *time.Time         `json:"processedAt,omitempty"`
	Sentiment   *SentimentAnalysis `json:"sentiment,omitempty"`
	Spin        *SpinAnalysis      `json:"spin,omitempty"`
	Keywords    []string           `json:"keywords,omitempty"`
	Topics      []string           `json:"topics,omitempty"`
	ActionItems []string           `json:"actionItems,omitempty"`
	Insights    []string           `json:"insights,omitempty"`
}

// SentimentAnalysis carries the categorical overall sentiment, e.g. "very_positive".
type SentimentAnalysis struct {
	Overall string   `json:"overall,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// SpinAnalysis holds per-category SPIN results and the overall score.
type SpinAnalysis struct {
	Situation   *SpinCategory `json:"situation,omitempty"`
	Problem     *SpinCategory `json:"problem,omitempty"`
	Implication *SpinCategory `json:"implication,omitempty"`
	NeedPayoff  *SpinCategory `json:"needPayoff,omitempty"`
	Overall     *SpinOverall  `json:"overall,omitempty"`
}

// SpinCategory is the result for one SPIN question category.
type SpinCategory struct {
	Score       *float64 `json:"score,omitempty"`
	Count       int      `json:"count,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SpinOverall summarises the whole call.
type SpinOverall struct {
	Score           *float64 `json:"score,omitempty"`
	TotalQuestions  int      `json:"totalQuestions,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// OverallSpinScore returns the overall SPIN score, if the analysis has one.
func (a RecordingAnalysis) OverallSpinScore() (float64, bool) {
	if a.Spin == nil || a.Spin.Overall == nil || a.Spin.Overall.Score == nil {
		return 0, false
	}
	return *a.Spin.Overall.Score, true
}

// Category returns the named SPIN category: situation, problem, implication or needPayoff.
func (s *SpinAnalysis) Category(name string) *SpinCategory {
	if s == nil {
		return nil
	}
	switch name {
	case "situation":
		return s.Situation
	case "problem":
		return s.Problem
	case "implication":
		return s.Implication
	case "needPayoff":
		return s.NeedPayoff
	}
	return nil
}
