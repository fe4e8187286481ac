package http

import (
	"context"
	"net/http"

	"github.com/attendance-notifier/internal/application/notification"
	"github.com/attendance-notifier/internal/application/user"
	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/transport/http/handler"
	appmiddleware "github.com/attendance-notifier/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Notifications notification.Service
	Users         user.Service
	Pipeline      handler.Pipeline
	Reminders     handler.ReminderGenerator
	Verifier      appmiddleware.TokenVerifier
	// Gatherer backs /metrics. Defaults to the global prometheus registry.
	Gatherer prometheus.Gatherer
}

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate-limiter housekeeping.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// 20 requests/second, burst of 40 per client across the API.
	apiRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(20), 40)
	// Test pushes hit the real gateway; keep them rare.
	testRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(0.2), 3)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(deps.Notifications)
	userH := handler.NewUserHandler(deps.Users)
	jobH := handler.NewJobHandler(deps.Pipeline, deps.Reminders, cfg.Schedule.RetentionDays)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Verifier))
			r.Use(apiRL.Limit)

			r.Post("/notifications", notifH.Schedule)
			r.Post("/notifications/batch", notifH.ScheduleBatch)
			r.Get("/notifications", notifH.List)
			r.Get("/notifications/logs", notifH.Logs)
			r.Get("/notifications/stats", notifH.Stats)
			r.With(testRL.Limit).Post("/notifications/test", notifH.SendTest)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}", notifH.Update)
			r.Delete("/notifications/{id}", notifH.Cancel)

			r.Get("/users/me", userH.Me)
			r.Put("/users/me/push-token", userH.RegisterPushToken)
			r.Put("/users/me/settings", userH.UpdateSettings)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/admin/jobs/process-due", jobH.ProcessDue)
				r.Post("/admin/jobs/cleanup", jobH.Cleanup)
				r.Post("/admin/jobs/reminders", jobH.Reminders)
			})
		})
	})

	return r
}
