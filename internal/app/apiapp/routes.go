package apiapp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rsharma/courselane/internal/services/auth"
	"github.com/rsharma/courselane/internal/transport/http/handlers"
)

type routerDeps struct {
	logger     *zap.Logger
	jwtManager *auth.JWTManager
	checkout   *handlers.CheckoutHandler
	courses    *handlers.CourseHandler
	admin      *handlers.AdminHandler
	health     *handlers.HealthHandler
}

func newRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", deps.health.Healthz)

	// The webhook authenticates with its body signature, not a bearer token.
	r.Post("/webhook", deps.checkout.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(deps.jwtManager))

		r.Post("/checkout/create-checkout-session", deps.checkout.CreateSession)
		r.Post("/payment/verify", deps.checkout.Verify)
		r.Get("/course/{courseId}/detail-with-status", deps.courses.DetailWithStatus)
		r.Get("/purchases", deps.courses.ListPurchased)

		r.Group(func(r chi.Router) {
			r.Use(requireRole("ADMIN", "INSTRUCTOR"))
			r.Get("/admin/webhook-dead-letters", deps.admin.ListWebhookDeadLetters)
		})
	})

	return r
}
