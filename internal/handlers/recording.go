package handlers

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/utils"
)

const analysisCompleted = "completed"

// RecordingHandler manages call recordings and their analysis documents.
type RecordingHandler struct {
	recordings    *repository.RecordingStore
	appointments  *repository.AppointmentStore
	notifications *repository.NotificationStore
	now           func() time.Time
	log           *zap.Logger
}

// NewRecordingHandler constructs RecordingHandler.
func NewRecordingHandler(
	recordings *repository.RecordingStore,
	appointments *repository.AppointmentStore,
	notifications *repository.NotificationStore,
	now func() time.Time,
	log *zap.Logger,
) *RecordingHandler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordingHandler{
		recordings:    recordings,
		appointments:  appointments,
		notifications: notifications,
		now:           now,
		log:           log,
	}
}

type createRecordingRequest struct {
	AppointmentID string                    `json:"appointment_id" validate:"omitempty,uuid"`
	Title         string                    `json:"title" validate:"max=200"`
	Description   string                    `json:"description" validate:"max=1000"`
	ClientName    string                    `json:"client_name"`
	ClientCompany string                    `json:"client_company"`
	FileName      string                    `json:"file_name" validate:"required"`
	FileURL       string                    `json:"file_url" validate:"required"`
	FileSize      int64                     `json:"file_size" validate:"min=0"`
	Duration      float64                   `json:"duration" validate:"min=0"`
	Tags          []string                  `json:"tags"`
	Notes         string                    `json:"notes" validate:"max=5000"`
	Analysis      *models.RecordingAnalysis `json:"analysis"`
}

// Create stores a recording's metadata together with the analysis produced for it.
func (h *RecordingHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	var req createRecordingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	recording := &models.Recording{
		UserID:        userID,
		Title:         req.Title,
		Description:   req.Description,
		ClientName:    req.ClientName,
		ClientCompany: req.ClientCompany,
		Status:        models.RecordingActive,
		Tags:          datatypes.JSONSlice[string](req.Tags),
		Notes:         req.Notes,
		Audio: models.RecordingAudio{
			FileName: req.FileName,
			FileURL:  req.FileURL,
			FileSize: req.FileSize,
			Duration: req.Duration,
			Format:   strings.TrimPrefix(path.Ext(req.FileName), "."),
		},
	}
	if recording.Title == "" {
		recording.Title = req.FileName
	}

	if req.AppointmentID != "" {
		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid appointment_id")
		}
		if _, err := h.appointments.Get(c.UserContext(), userID, appointmentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "invalid appointment_id, appointment not found")
			}
			return err
		}
		recording.AppointmentID = &appointmentID
	}

	analysis := models.RecordingAnalysis{Status: "pending"}
	if req.Analysis != nil {
		analysis = *req.Analysis
	}
	recording.Analysis = datatypes.NewJSONType(analysis)

	if err := h.recordings.Create(c.UserContext(), recording); err != nil {
		return err
	}

	pushNotification(c.UserContext(), h.notifications, h.log, h.now(), &models.Notification{
		UserID:      userID,
		Type:        models.NotificationRecordingUploaded,
		Title:       "Recording uploaded",
		Message:     fmt.Sprintf("%q was uploaded", recording.Title),
		RecordingID: &recording.ID,
		ActionURL:   "/recordings/" + recording.ID.String(),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Recording uploaded successfully",
		"data":    recordingSummary(recording),
	})
}

// List returns a page of the caller's recordings, newest first.
func (h *RecordingHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	page := utils.ParsePagination(c, 50)
	recordings, total, err := h.recordings.List(c.UserContext(), repository.RecordingFilter{
		UserID:         userID,
		ExcludeDeleted: true,
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(recordings))
	for i := range recordings {
		data = append(data, recordingSummary(&recordings[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"total":  total,
			"limit":  page.Limit,
			"offset": page.Offset,
		},
	})
}

// GetAnalysis returns the analysis document of one recording.
func (h *RecordingHandler) GetAnalysis(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid recording id")
	}

	recording, err := h.recordings.Get(c.UserContext(), userID, id)
	if err != nil {
		return err
	}

	analysis := recording.Analysis.Data()
	if analysis.Status != analysisCompleted {
		status := analysis.Status
		if status == "" {
			status = "pending"
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"recording_id": recording.ID,
				"analyzed":     false,
				"status":       status,
				"message":      "Analysis is not yet completed",
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"recording_id": recording.ID,
			"analyzed":     true,
			"analysis":     analysis,
		},
	})
}

// Delete soft-deletes a recording.
func (h *RecordingHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid recording id")
	}

	if err := h.recordings.SoftDelete(c.UserContext(), userID, id); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Recording deleted",
	})
}

func recordingSummary(r *models.Recording) fiber.Map {
	analysis := r.Analysis.Data()

	var spinScore interface{}
	if score, ok := analysis.OverallSpinScore(); ok {
		spinScore = score
	}
	var sentiment interface{}
	if analysis.Sentiment != nil && analysis.Sentiment.Overall != "" {
		sentiment = analysis.Sentiment.Overall
	}

	seconds := int(r.Audio.Duration)
	return fiber.Map{
		"id":             r.ID,
		"appointment_id": r.AppointmentID,
		"title":          r.Title,
		"duration":       fmt.Sprintf("%02d:%02d", seconds/60, seconds%60),
		"date":           r.CreatedAt.Format("2006-01-02"),
		"analyzed":       analysis.Status == analysisCompleted,
		"spin_score":     spinScore,
		"sentiment":      sentiment,
		"file_url":       r.Audio.FileURL,
		"status":         r.Status,
	}
}
