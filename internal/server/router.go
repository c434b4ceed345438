// Package server assembles the HTTP router from the application's parts.
package server

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/imagegen"
	"github.com/threadforge/threadforge/internal/logging"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/server/handlers"
	"github.com/threadforge/threadforge/internal/session"
)

// Deps bundles everything the routes need.
type Deps struct {
	Sessions  *session.Manager
	Billing   *billing.Client
	Gate      *quota.Gate
	Generator *generate.Client
	Images    *imagegen.Client
	Analytics *analytics.Store

	FreeDailyLimit       int
	CarouselMonthlyLimit int
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestID)

	r.Get("/health", handlers.HealthHandler(d.Sessions))

	// OAuth flow (browser redirects, not JSON)
	r.Get("/auth/x/connect", handlers.ConnectHandler(d.Sessions))
	r.Get("/auth/x/callback", handlers.CallbackHandler(d.Sessions))

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", handlers.MeHandler(d.Sessions, d.Billing, d.Gate, d.FreeDailyLimit))
		r.Post("/identity", handlers.SetIdentityHandler(d.Sessions, d.Billing, d.Gate, d.FreeDailyLimit))

		r.Post("/generate", handlers.GenerateHandler(d.Sessions, d.Billing, d.Gate, d.Generator, d.Analytics, d.FreeDailyLimit))
		r.Post("/carousel", handlers.CarouselHandler(d.Sessions, d.Billing, d.Gate, d.Generator, d.Images, d.Analytics, d.CarouselMonthlyLimit))

		r.Get("/templates", handlers.ListTemplatesHandler(d.Sessions, d.Billing))
		r.Post("/templates/{id}/fill", handlers.FillTemplateHandler(d.Sessions, d.Billing))

		r.Post("/publish", handlers.PublishHandler(d.Sessions, d.Analytics))
		r.Post("/disconnect", handlers.DisconnectHandler(d.Sessions))

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", handlers.SummaryHandler(d.Sessions, d.Analytics))
			r.Get("/history", handlers.HistoryHandler(d.Sessions, d.Analytics))
			r.Get("/activity", handlers.ActivityHandler(d.Sessions, d.Analytics))
			r.Get("/artifacts", handlers.ArtifactsHandler(d.Sessions, d.Analytics))
			r.Post("/refresh", handlers.RefreshMetricsHandler(d.Sessions, d.Analytics))
			r.Delete("/", handlers.ClearHandler(d.Sessions, d.Analytics))
		})
	})

	return r
}
