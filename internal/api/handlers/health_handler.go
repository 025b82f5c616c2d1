package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aws-agent/console/pkg/circuitbreaker"
	"github.com/aws-agent/console/pkg/logger"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps    map[string]Pinger
	breaker *circuitbreaker.CircuitBreaker
}

func NewHealthHandler(deps map[string]Pinger, breaker *circuitbreaker.CircuitBreaker) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		breaker: breaker,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready fails when a local dependency is down. An open backend breaker is reported but
// does not fail the probe, since cached lists can still be served.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	resp := fiber.Map{
		"status": "ready",
		"checks": checks,
	}
	if h.breaker != nil {
		resp["backend"] = h.breaker.State().String()
	}

	if !ready {
		resp["status"] = "not ready"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
