package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/validation"
)

// ErrorHandler renders every error returned by a handler as {success:false, code, message}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"code":    "http_error",
				"message": fe.Message,
			})
		}

		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.Wrap(apperr.ErrNotFound, err)
		}

		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"code":    "internal",
				"message": "internal server error",
			})
		}

		if ae.Kind == apperr.KindUpstream {
			log.Warn("upstream failure", zap.String("path", c.Path()), zap.Error(err))
		}

		return c.Status(apperr.HTTPStatus(ae)).JSON(fiber.Map{
			"success": false,
			"code":    ae.Code,
			"message": ae.Message,
		})
	}
}

// parseBody decodes the JSON body into req and validates it.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return validation.Struct(req)
}

func unauthorized() error {
	return apperr.ErrTokenMissing
}
