package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/metrics"
)

// Metrics records the status and latency of every request.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = apperr.HTTPStatus(err)
			}
		}

		route := c.Route().Path
		metrics.ResponsesTotal.WithLabelValues(c.Method(), strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}
