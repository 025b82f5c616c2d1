package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/aws-agent/console/internal/dashboard"
	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/notify"
)

type Deps struct {
	Session *dashboard.Session
	Hub     *notify.Hub
	Health  *HealthHandler
}

// Register mounts the console API on app.
func Register(app *fiber.App, deps Deps) {
	sessionHandler := NewSessionHandler(deps.Session)
	recommendationsHandler := NewRecommendationsHandler(deps.Session)
	filtersHandler := NewFiltersHandler(deps.Session.Filters())
	detailHandler := NewDetailHandler(deps.Session)

	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}

	api := app.Group("/api/v1")

	api.Post("/login", sessionHandler.Login)
	api.Post("/logout", sessionHandler.Logout)
	api.Get("/session", sessionHandler.GetSession)
	api.Put("/view", sessionHandler.SetView)

	api.Get("/recommendations", recommendationsHandler.List)
	api.Post("/recommendations/more", recommendationsHandler.More)
	api.Post("/recommendations/sentinel", recommendationsHandler.Sentinel)
	api.Post("/recommendations/:id/archive", recommendationsHandler.Archive)
	api.Post("/recommendations/:id/unarchive", recommendationsHandler.Unarchive)
	api.Get("/mutations", recommendationsHandler.History)

	api.Get("/filters", filtersHandler.Get)
	api.Put("/filters/search", filtersHandler.SetSearch)
	api.Put("/filters/dropdown-search", filtersHandler.SetDropdownSearch)
	api.Post("/filters/toggle", filtersHandler.Toggle)
	api.Delete("/filters", filtersHandler.Clear)

	api.Get("/detail", detailHandler.Get)
	api.Put("/detail/:id", detailHandler.Open)
	api.Delete("/detail", detailHandler.Close)

	if deps.Hub != nil {
		wsHandler := NewWebSocketHandler(deps.Hub)
		api.Get("/ws", wsHandler.Upgrade, websocket.New(wsHandler.HandleConnection))
	}

	api.Get("/health", health.Health)
	api.Get("/ready", health.Ready)

	app.Get("/metrics", metrics.MetricsHandler())
}
