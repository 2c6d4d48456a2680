package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/services"
	"github.com/example/spinsight/internal/utils"
)

// AppointmentHandler manages the caller's appointments.
type AppointmentHandler struct {
	appointments  *repository.AppointmentStore
	notifications *repository.NotificationStore
	users         *repository.UserStore
	notifier      services.Notifier
	loc           *time.Location
	now           func() time.Time
	log           *zap.Logger
}

// NewAppointmentHandler constructs AppointmentHandler. Dates and times are read in loc.
func NewAppointmentHandler(
	appointments *repository.AppointmentStore,
	notifications *repository.NotificationStore,
	users *repository.UserStore,
	notifier services.Notifier,
	loc *time.Location,
	now func() time.Time,
	log *zap.Logger,
) *AppointmentHandler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AppointmentHandler{
		appointments:  appointments,
		notifications: notifications,
		users:         users,
		notifier:      notifier,
		loc:           loc,
		now:           now,
		log:           log,
	}
}

type createAppointmentRequest struct {
	ClientName     string `json:"client_name" validate:"required,max=200"`
	Company        string `json:"company" validate:"required,max=200"`
	ClientEmail    string `json:"client_email" validate:"omitempty,email"`
	ClientPhone    string `json:"client_phone"`
	ClientPosition string `json:"client_position"`
	Date           string `json:"date" validate:"required"`
	Time           string `json:"time" validate:"required"`
	Duration       int    `json:"duration" validate:"omitempty,min=15,max=240"`
	Type           string `json:"type" validate:"required,oneof=discovery demo follow_up closing support other"`
	Notes          string `json:"notes" validate:"max=2000"`
	Priority       string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type updateAppointmentRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=scheduled confirmed in_progress completed cancelled no_show"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// Create schedules an appointment. The email and the in-app notification are best effort.
func (h *AppointmentHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	var req createAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	scheduled, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, h.loc)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid date or time format")
	}

	appointment := &models.Appointment{
		UserID: userID,
		Client: models.AppointmentClient{
			Name:     req.ClientName,
			Email:    req.ClientEmail,
			Phone:    req.ClientPhone,
			Company:  req.Company,
			Position: req.ClientPosition,
		},
		ScheduledDate: scheduled,
		Duration:      req.Duration,
		Type:          req.Type,
		Status:        "scheduled",
		Notes:         req.Notes,
		Priority:      req.Priority,
	}
	if appointment.Duration == 0 {
		appointment.Duration = 30
	}
	if appointment.Priority == "" {
		appointment.Priority = "medium"
	}

	if err := h.appointments.Create(c.UserContext(), appointment); err != nil {
		return err
	}

	h.announce(c.UserContext(), appointment)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Appointment created successfully",
		"data":    h.appointmentResponse(appointment),
	})
}

// Update changes the status and/or notes of an appointment.
func (h *AppointmentHandler) Update(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	var req updateAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Status == "" && req.Notes == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no fields provided to update")
	}

	appointment, err := h.appointments.Update(c.UserContext(), userID, id, req.Status, req.Notes)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment updated successfully",
		"data": fiber.Map{
			"id":     appointment.ID,
			"status": appointment.Status,
			"notes":  appointment.Notes,
		},
	})
}

// Get returns one appointment of the caller.
func (h *AppointmentHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	appointment, err := h.appointments.Get(c.UserContext(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.appointmentResponse(appointment),
	})
}

// List returns the caller's appointments filtered by ?status= and ?date=.
func (h *AppointmentHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	page := utils.ParsePagination(c, 50)
	filter := repository.AppointmentFilter{
		UserID: userID,
		Status: c.Query("status"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}

	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, h.loc)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		end := day.AddDate(0, 0, 1).Add(-time.Millisecond)
		filter.From, filter.To = &day, &end
	}

	appointments, err := h.appointments.Find(c.UserContext(), filter)
	if err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(appointments))
	for i := range appointments {
		data = append(data, h.appointmentResponse(&appointments[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func (h *AppointmentHandler) announce(ctx context.Context, appointment *models.Appointment) {
	when := appointment.ScheduledDate.In(h.loc).Format("2006-01-02 15:04")

	pushNotification(ctx, h.notifications, h.log, h.now(), &models.Notification{
		UserID:        appointment.UserID,
		Type:          models.NotificationAppointmentCreated,
		Title:         "Appointment scheduled",
		Message:       "Appointment with " + appointment.Client.Name + " on " + when,
		AppointmentID: &appointment.ID,
		ActionURL:     "/appointments/" + appointment.ID.String(),
		Priority:      appointment.Priority,
	})

	if h.notifier == nil || h.users == nil {
		return
	}
	user, err := h.users.FindByID(ctx, appointment.UserID)
	if err != nil {
		h.log.Warn("load appointment owner failed", zap.String("appointment_id", appointment.ID.String()), zap.Error(err))
		return
	}
	if !user.Preferences.NotifyEmail {
		return
	}
	h.notifier.Send(ctx, services.NotifyAppointmentCreated, user.Email, services.Payload{
		"name":           user.Name,
		"client_name":    appointment.Client.Name,
		"client_company": appointment.Client.Company,
		"type":           appointment.Type,
		"scheduled_date": when,
		"duration":       strconv.Itoa(appointment.Duration),
	})
}

func (h *AppointmentHandler) appointmentResponse(a *models.Appointment) fiber.Map {
	local := a.ScheduledDate.In(h.loc)
	return fiber.Map{
		"id":          a.ID,
		"client_name": a.Client.Name,
		"company":     a.Client.Company,
		"client":      a.Client,
		"date":        local.Format("2006-01-02"),
		"time":        local.Format("15:04"),
		"duration":    a.Duration,
		"status":      a.Status,
		"type":        a.Type,
		"priority":    a.Priority,
		"notes":       a.Notes,
	}
}
