package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/butekinselcuk/sepettakip/app"
	"github.com/butekinselcuk/sepettakip/internal/observability"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	auth := deps.AuthMiddleware
	managers := auth.RequireRole(models.RoleAdmin, models.RoleBusiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		// Requests are filed by customers, businesses and admins
		r.Post("/orders/{id}/cancellation", deps.RequestHandler.HandleRequestCancellation)
		r.Post("/orders/{id}/refund", deps.RequestHandler.HandleRequestRefund)
		r.Get("/cancellations/{id}", deps.RequestHandler.HandleGetCancellation)
		r.Get("/refunds/{id}", deps.RequestHandler.HandleGetRefund)

		r.Group(func(r chi.Router) {
			r.Use(managers)
			r.Get("/cancellations", deps.RequestHandler.HandleListCancellations)
			r.Get("/refunds", deps.RequestHandler.HandleListRefunds)
		})

		// Policy management
		r.Route("/policies", func(r chi.Router) {
			r.Use(managers)
			r.Get("/", deps.PolicyHandler.HandleListPolicies)
			r.Post("/", deps.PolicyHandler.HandleCreatePolicy)
			r.Post("/preview", deps.PolicyHandler.HandlePreviewPolicy)
			r.Get("/{id}", deps.PolicyHandler.HandleGetPolicy)
			r.Put("/{id}", deps.PolicyHandler.HandleUpdatePolicy)
			r.Delete("/{id}", deps.PolicyHandler.HandleDeletePolicy)
			r.Post("/{id}/activate", deps.PolicyHandler.HandleActivatePolicy)
		})

		// Audit
		r.Route("/audit", func(r chi.Router) {
			r.With(auth.RequireRole(models.RoleAdmin)).Get("/recent", deps.AuditHandler.HandleRecent)
			r.With(managers).Get("/logs", deps.AuditHandler.HandleListLogs)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
