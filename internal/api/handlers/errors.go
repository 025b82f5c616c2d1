package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/archive"
	"github.com/aws-agent/console/internal/dashboard"
	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/pkg/logger"
)

// statusFor maps a domain error to the status the UI receives.
func statusFor(err error) int {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, dashboard.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, dashboard.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, archive.ErrMutationPending):
		return fiber.StatusConflict
	case errors.Is(err, gateway.ErrTransport):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Err != nil:
			return fiber.StatusBadGateway
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return fiber.StatusBadGateway
		case apiErr.StatusCode >= http.StatusBadRequest:
			return apiErr.StatusCode
		default:
			return fiber.StatusBadGateway
		}
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": gateway.Message(err),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
