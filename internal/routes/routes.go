package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/handlers"
	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/services"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth          *services.AuthService
	Dashboard     *services.DashboardService
	Notifier      services.Notifier
	Users         *repository.UserStore
	Appointments  *repository.AppointmentStore
	Recordings    *repository.RecordingStore
	Notifications *repository.NotificationStore
	Location      *time.Location
	Now           func() time.Time
	Log           *zap.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth)
	profileHandler := handlers.NewProfileHandler(deps.Auth)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, deps.Users, deps.Log)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments, deps.Notifications, deps.Users, deps.Notifier, deps.Location, deps.Now, deps.Log)
	recordingHandler := handlers.NewRecordingHandler(deps.Recordings, deps.Appointments, deps.Notifications, deps.Now, deps.Log)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Now)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	requireAuth := middleware.AuthMiddleware(deps.Auth.Sessions())

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/resend-verification", authHandler.ResendVerification)
	auth.Post("/forgot-password", authHandler.ForgotPassword)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/logout", requireAuth, authHandler.Logout)
	auth.Get("/sessions", requireAuth, authHandler.Sessions)
	auth.Post("/revoke-sessions", requireAuth, authHandler.RevokeSessions)

	profile := api.Group("/profile", requireAuth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)

	api.Get("/dashboard/stats", requireAuth, dashboardHandler.GetStats)

	appointments := api.Group("/appointments", requireAuth)
	appointments.Post("/", appointmentHandler.Create)
	appointments.Get("/", appointmentHandler.List)
	appointments.Get("/:id", appointmentHandler.Get)
	appointments.Put("/:id", appointmentHandler.Update)

	recordings := api.Group("/recordings", requireAuth)
	recordings.Post("/", recordingHandler.Create)
	recordings.Get("/", recordingHandler.List)
	recordings.Get("/:id/analysis", recordingHandler.GetAnalysis)
	recordings.Delete("/:id", recordingHandler.Delete)

	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)
	notifications.Put("/:id/read", notificationHandler.MarkRead)
}
