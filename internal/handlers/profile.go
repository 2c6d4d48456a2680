package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/services"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	auth *services.AuthService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(auth *services.AuthService) *ProfileHandler {
	return &ProfileHandler{auth: auth}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	user, err := h.auth.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User profile retrieved successfully",
		"data":    profileResponse(user),
	})
}

type updateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,max=100"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateProfile updates name and phone.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" && req.Phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no fields provided to update")
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), userID, req.Name, req.Phone)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"data":    profileResponse(user),
	})
}

func profileResponse(user *models.User) fiber.Map {
	role := user.Role
	if role == "" {
		role = models.RoleSalesRep
	}
	return fiber.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"role":        role,
		"phone":       user.Phone,
		"company":     user.Company,
		"department":  user.Department,
		"preferences": user.Preferences,
		"joined_date": user.CreatedAt.Format("2006-01-02"),
		"stats": fiber.Map{
			"total_calls":        user.Stats.TotalRecordings,
			"avg_spin_score":     user.Stats.AvgSpinScore,
			"total_appointments": user.Stats.TotalAppointments,
		},
	}
}
