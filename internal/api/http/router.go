package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Workflow       *handlers.WorkflowHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/close", cfg.Tickets.Close)

	staffOnly := auth.RequireStaff()
	tickets.Post("/:id/take", staffOnly, cfg.Tickets.Take)
	tickets.Post("/:id/start", staffOnly, cfg.Tickets.Start)
	tickets.Post("/:id/resolve", staffOnly, cfg.Tickets.Resolve)
	tickets.Post("/:id/escalate", staffOnly, cfg.Tickets.Escalate)
	tickets.Post("/:id/delegate", staffOnly, cfg.Tickets.Delegate)
	tickets.Post("/:id/workflow/evaluate", staffOnly, cfg.Workflow.Evaluate)
	tickets.Post("/:id/workflow/apply", staffOnly, cfg.Workflow.Apply)

	protected.Get("/workflow/rules", staffOnly, cfg.Workflow.ListRules)
	protected.Get("/assignees", staffOnly, cfg.Workflow.ListAssignees)
}
