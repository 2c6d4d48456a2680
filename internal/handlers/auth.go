package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/services"
)

// AuthHandler serves the account and session endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type deviceRequest struct {
	DeviceType  string `json:"device_type"`
	Platform    string `json:"platform"`
	AppVersion  string `json:"app_version"`
	OSVersion   string `json:"os_version"`
	DeviceModel string `json:"device_model"`
}

func (d deviceRequest) client(c *fiber.Ctx) services.ClientInfo {
	return services.ClientInfo{
		Device: models.DeviceInfo{
			DeviceType:  d.DeviceType,
			Platform:    d.Platform,
			AppVersion:  d.AppVersion,
			OSVersion:   d.OSVersion,
			DeviceModel: d.DeviceModel,
		},
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

type registerRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role" validate:"omitempty,oneof=sales_rep manager admin"`
	Company    string `json:"company"`
	Department string `json:"department"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	deviceRequest
}

type verifyOTPRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	OTP    string `json:"otp" validate:"required,len=6,numeric"`
	deviceRequest
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// Register creates an account and sends the email verification code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), services.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Role:       models.Role(req.Role),
		Company:    req.Company,
		Department: req.Department,
	})
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"success": true,
		"message": "User registered successfully. Please verify your email.",
		"data": fiber.Map{
			"user_id":                 result.User.ID,
			"email":                   result.User.Email,
			"name":                    result.User.Name,
			"role":                    result.User.Role,
			"requires_otp":            true,
			"verification_email_sent": result.VerificationSent,
		},
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// VerifyOTP confirms the email address and opens the first session.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	result, err := h.auth.VerifyEmail(c.UserContext(), userID, req.OTP, req.client(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "OTP verified successfully",
		"data":    authResponse(result),
	})
}

// ResendVerification issues a fresh verification code.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendVerification(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Verification code sent to your email",
	})
}

// Login checks credentials and opens a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, req.client(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data":    authResponse(result),
	})
}

// ForgotPassword sends a reset code. The response does not reveal whether the email exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "If the email is registered, a password reset code has been sent",
	})
}

// ResetPassword sets a new password with a reset code and signs out every device.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password reset successfully",
	})
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session, ok := middleware.GetCurrentSession(c)
	if !ok {
		return unauthorized()
	}

	if err := h.auth.Logout(c.UserContext(), session); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	sessions, err := h.auth.Sessions().ListActive(c.UserContext(), userID, middleware.GetCurrentToken(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sessions,
	})
}

// RevokeSessions signs out every other device of the caller.
func (h *AuthHandler) RevokeSessions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	revoked, err := h.auth.Sessions().RevokeAllExcept(c.UserContext(), userID, middleware.GetCurrentToken(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "All other sessions have been revoked",
		"data":    fiber.Map{"revoked": revoked},
	})
}

func authResponse(result *services.AuthResult) fiber.Map {
	return fiber.Map{
		"token": result.Token,
		"user": fiber.Map{
			"id":    result.User.ID,
			"email": result.User.Email,
			"name":  result.User.Name,
			"role":  result.User.Role,
		},
		"session_id": result.Session.ID,
		"expires_at": result.Session.ExpiresAt,
	}
}
