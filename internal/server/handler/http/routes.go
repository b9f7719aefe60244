package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/middleware"
)

// RouterConfig carries what NewRouter needs besides the handlers.
type RouterConfig struct {
	// Resolver identifies the caller of identity-aware routes.
	Resolver middleware.Resolver
	// CORSOrigins lists the allowed browser origins.
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter constructs the API handler.
//
// Routes:
//
//	GET  /health                 → liveness
//	GET  /api/                   → service banner
//	POST /api/analyze-property   → analysisHandler.Analyze
//	GET  /api/credits            → analysisHandler.Credits
//	POST /api/auth/session       → authHandler.Session
//	GET  /api/auth/me            → authHandler.Me
//	POST /api/auth/logout        → authHandler.Logout
//	GET  /api/payment/packages   → paymentHandler.Packages
//	POST /api/payment/create     → paymentHandler.Create
//	POST /api/payment/webhook    → paymentHandler.Webhook
//
// Every route except the webhook, the catalog and the health check runs
// behind WithIdentity. JSON bodies are enforced on the JSON POST routes.
func NewRouter(
	analysisHandler *AnalysisHandler,
	authHandler *AuthHandler,
	paymentHandler *PaymentHandler,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "parseldeğer.com API"})
		})

		// Provider callback and static catalog need no caller identity.
		r.Get("/payment/packages", paymentHandler.Packages)
		r.Post("/payment/webhook", paymentHandler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.WithIdentity(cfg.Resolver, cfg.Logger))

			r.Get("/credits", analysisHandler.Credits)
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/payment/create", paymentHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/analyze-property", analysisHandler.Analyze)
				r.Post("/auth/session", authHandler.Session)
			})
		})
	})

	return r
}
