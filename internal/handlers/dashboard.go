package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/services"
)

// DashboardHandler serves the aggregated dashboard statistics.
type DashboardHandler struct {
	dashboard *services.DashboardService
	users     *repository.UserStore
	log       *zap.Logger
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *services.DashboardService, users *repository.UserStore, log *zap.Logger) *DashboardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardHandler{dashboard: dashboard, users: users, log: log}
}

// GetStats computes the caller's stats for ?period=, ?start_date= and ?end_date=.
// An all-time request also refreshes the cached stats on the user record.
func (h *DashboardHandler) GetStats(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	query := services.StatsQuery{
		Period:    c.Query("period"),
		StartDate: c.Query("start_date", c.Query("startDate")),
		EndDate:   c.Query("end_date", c.Query("endDate")),
	}

	stats, err := h.dashboard.ComputeStats(c.UserContext(), userID, query)
	if err != nil {
		return err
	}

	if query.Empty() && h.users != nil {
		if err := h.users.UpdateStats(c.UserContext(), userID, stats.Snapshot()); err != nil {
			h.log.Warn("refresh stats snapshot failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}
