package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	Watchers       *handlers.WatchersHandler
	Views          *handlers.ViewsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	read := auth.RequirePermission(domain.PermTicketsRead)
	write := auth.RequirePermission(domain.PermTicketsWrite)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", write, cfg.Tickets.CreateTicket)
	tickets.Post("/search", read, cfg.Views.Search)
	tickets.Get("/:id", read, cfg.Tickets.GetTicket)
	tickets.Patch("/:id", write, cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequirePermission(domain.PermTicketsDelete), auth.RequireAdmin(), cfg.Tickets.PurgeTicket)
	tickets.Get("/:id/events", read, cfg.Tickets.ListEvents)
	tickets.Get("/:id/messages", read, cfg.Messages.ListMessages)
	tickets.Post("/:id/messages", write, cfg.Messages.PostMessage)
	tickets.Post("/:id/attachments/upload-url", write, cfg.Messages.UploadURL)
	tickets.Get("/:id/attachments/download-url", read, cfg.Messages.DownloadURL)
	tickets.Get("/:id/watchers", read, cfg.Watchers.List)
	tickets.Post("/:id/watchers", write, cfg.Watchers.Add)
	tickets.Delete("/:id/watchers/:userId", write, cfg.Watchers.Remove)

	views := app.Group("/views", cfg.AuthMiddleware.Handle, read)
	views.Get("/", cfg.Views.List)
	views.Post("/", cfg.Views.Create)
	views.Get("/:id", cfg.Views.Get)
	views.Delete("/:id", cfg.Views.Delete)
	views.Get("/:id/tickets", cfg.Views.Tickets)
}
