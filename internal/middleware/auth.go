package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/models"
)

const (
	userContextKey    = "currentUserID"
	sessionContextKey = "currentSession"
	tokenContextKey   = "currentToken"
)

// Authenticator resolves a bearer token to its user and live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// AuthMiddleware validates the bearer token against its server-side session
// and loads the user ID, session and token into the request context.
func AuthMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.ErrTokenMissing
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperr.ErrTokenInvalid
		}
		token := strings.TrimSpace(parts[1])

		user, session, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(userContextKey, user.ID)
		c.Locals(sessionContextKey, session)
		c.Locals(tokenContextKey, token)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetCurrentSession returns the session that authenticated the request.
func GetCurrentSession(c *fiber.Ctx) (*models.Session, bool) {
	session, ok := c.Locals(sessionContextKey).(*models.Session)
	return session, ok && session != nil
}

// GetCurrentToken returns the raw bearer token of the request.
func GetCurrentToken(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenContextKey).(string)
	return token
}
