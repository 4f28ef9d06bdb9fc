package server

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"go.uber.org/zap"
)

// requestLogger puts a request-scoped logger into the user context and logs
// one line per request once the handler chain has finished.
func requestLogger(base *zap.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid, _ := c.Locals("requestid").(string)
		logger := base.With(
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		c.SetUserContext(logging.ContextWithLogger(c.UserContext(), logger))

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		m.HTTPRequest(c.Method(), route, strconv.Itoa(status))

		fields := []zap.Field{
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("http_request", fields...)
		} else {
			logger.Info("http_request", fields...)
		}
		return nil
	}
}
