package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/config"
	"github.com/example/spinsight/internal/database"
	"github.com/example/spinsight/internal/handlers"
	"github.com/example/spinsight/internal/logger"
	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/routes"
	"github.com/example/spinsight/internal/services"
	"github.com/example/spinsight/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel, logger.WithComponent(log, "database"))
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis ping failed, code request limits fail open", zap.Error(err))
		}
		cancel()
	} else {
		log.Info("REDIS_URL not set, code request limits disabled")
	}

	loc := cfg.Location()
	now := time.Now

	users := repository.NewUserStore(db)
	codes := repository.NewCodeStore(db)
	sessionStore := repository.NewSessionStore(db)
	appointments := repository.NewAppointmentStore(db)
	recordings := repository.NewRecordingStore(db)
	notifications := repository.NewNotificationStore(db)

	email := services.NewEmailService(services.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger.WithComponent(log, "email"))
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, logger.WithComponent(log, "telegram"))
	notifier := services.NewNotifierRouter(email, cfg.NotifyTimeout, logger.WithComponent(log, "notifier")).
		Route(services.NotifyAdminAlert, telegram)

	var limiter services.CodeRequestLimiter
	if rdb != nil {
		limiter = services.NewRedisCodeLimiter(rdb, cfg.OTPRequestWindow, cfg.OTPRequestLimit, logger.WithComponent(log, "limiter"))
	}

	signer := utils.NewSigner(cfg.JWTSecret, now)
	sessions := services.NewSessionService(sessionStore, users, signer, cfg.AccessTokenTTL, now, logger.WithComponent(log, "sessions"))
	auth := services.NewAuthService(users, codes, sessions, notifier, limiter, services.AuthConfig{
		CodeTTL:        cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		BcryptCost:     cfg.BcryptCost,
		AdminAlertChat: cfg.TelegramAdminChat,
	}, now, logger.WithComponent(log, "auth"))
	dashboard := services.NewDashboardService(recordings, appointments, loc, now, logger.WithComponent(log, "dashboard"))

	reaper := services.NewReaper(sessionStore, codes, services.ReaperConfig{
		Interval:         cfg.ReaperInterval,
		SessionRetention: cfg.SessionRetention,
		CodeRetention:    cfg.CodeRetention,
	}, now, logger.WithComponent(log, "reaper"))

	app := fiber.New(fiber.Config{
		AppName:      "SpinSight API",
		ErrorHandler: handlers.ErrorHandler(logger.WithComponent(log, "http")),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.Metrics())

	routes.Register(app, routes.Deps{
		Auth:          auth,
		Dashboard:     dashboard,
		Notifier:      notifier,
		Users:         users,
		Appointments:  appointments,
		Recordings:    recordings,
		Notifications: notifications,
		Location:      loc,
		Now:           now,
		Log:           logger.WithComponent(log, "http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Environment))
		serveErr <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("fiber.Listen error", zap.Error(err))
		}
	}

	reaper.Stop()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Warn("close database", zap.Error(err))
	}
	log.Info("server stopped")
}
