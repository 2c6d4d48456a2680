package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/middleware"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/utils"
)

const notificationLifetime = 30 * 24 * time.Hour

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	notifications *repository.NotificationStore
	now           func() time.Time
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *repository.NotificationStore, now func() time.Time) *NotificationHandler {
	if now == nil {
		now = time.Now
	}
	return &NotificationHandler{notifications: notifications, now: now}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	page := utils.ParsePagination(c, 50)
	unreadOnly := c.QueryBool("unread_only", c.QueryBool("unreadOnly", false))

	items, err := h.notifications.List(c.UserContext(), userID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	unread, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"notifications": items,
			"unread_count":  unread,
			"pagination": fiber.Map{
				"limit":  page.Limit,
				"offset": page.Offset,
			},
		},
	})
}

// UnreadCount returns how many notifications are unread.
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	count, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"unread_count": count},
	})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification id")
	}

	if err := h.notifications.MarkRead(c.UserContext(), userID, id, h.now()); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification marked as read",
	})
}

// MarkAllRead marks every unread notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return unauthorized()
	}

	updated, err := h.notifications.MarkAllRead(c.UserContext(), userID, h.now())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "All notifications marked as read",
		"data":    fiber.Map{"updated": updated},
	})
}

// pushNotification stores an in-app notification. Failures are logged only.
func pushNotification(ctx context.Context, store *repository.NotificationStore, log *zap.Logger, now time.Time, n *models.Notification) {
	if store == nil {
		return
	}
	if n.Priority == "" {
		n.Priority = "medium"
	}
	n.ExpiresAt = now.Add(notificationLifetime)
	if err := store.Create(ctx, n); err != nil {
		log.Warn("create notification failed",
			zap.String("user_id", n.UserID.String()),
			zap.String("type", n.Type),
			zap.Error(err),
		)
	}
}
