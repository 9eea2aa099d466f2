package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

const readyProbeTimeout = 2 * time.Second

// HealthHandler responds to liveness and readiness probes and exposes the
// in-process counters.
type HealthHandler struct {
	serviceName string
	version     string
	metrics     *observability.Metrics
	deps        []dependency
}

type dependency struct {
	name string
	ping func(context.Context) error
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		metrics:     metrics,
		deps: []dependency{
			{name: "postgres", ping: postgres.Ping},
			{name: "redis", ping: redis.Ping},
		},
	}
}

// Metrics reports counter snapshots.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready probes each dependency and reports 503 when any is down.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyProbeTimeout)
	defer cancel()

	status := fiber.Map{}
	ready := true
	for _, dep := range h.deps {
		if err := dep.ping(ctx); err != nil {
			status[dep.name] = err.Error()
			ready = false
			continue
		}
		status[dep.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": status,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"dependencies": status,
	})
}
