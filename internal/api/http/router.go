package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/signaldesk/triage-service/internal/api/http/handlers"
	"github.com/signaldesk/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Triage       *handlers.TriageHandler
	TokenManager *auth.TokenManager
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/ingest", auth.RequireServiceToken(cfg.TokenManager), cfg.Triage.Ingest)

	tickets := app.Group("/tickets")
	tickets.Get("/:id", cfg.Triage.GetTicket)
	tickets.Post("/:id/delivery/retry", auth.RequireServiceToken(cfg.TokenManager), cfg.Triage.RetryDelivery)
}
