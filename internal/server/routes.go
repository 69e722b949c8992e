package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livesub/internal/batch"
	"livesub/internal/handlers/api"
	"livesub/internal/middleware"
	"livesub/internal/session"
	"livesub/internal/substitute"
)

// Deps are the components the routes are served from.
type Deps struct {
	Keywords    api.KeywordStore
	Sessions    *session.Manager
	Pairs       api.PairStore // nil without a database
	Auth        *middleware.AuthMiddleware
	DefaultMode substitute.Mode
	BatchOpts   []batch.Option
	Gatherer    prometheus.Gatherer // nil uses the default registry
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(d Deps) {
	if d.Auth == nil {
		d.Auth = middleware.NewAuthMiddlewareWithVerifier(nil)
	}
	if !d.Auth.Enabled() {
		slog.Warn("keyword admin endpoints are unauthenticated; set OIDC_ISSUER to protect them")
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Initialize handlers
	substituteHandler := api.NewSubstituteHandler(d.Keywords, d.DefaultMode, d.BatchOpts...)
	sessionHandler := api.NewSessionHandler(d.Sessions)
	keywordHandler := api.NewKeywordHandler(d.Keywords)
	healthHandler := api.NewHealthHandler(d.Keywords, d.Sessions)

	// Operational routes
	s.App.Get("/healthz", healthHandler.Check)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiGroup := s.App.Group("/api")

	// Stateless substitution
	apiGroup.Post("/substitute", substituteHandler.Substitute)
	apiGroup.Post("/rewrite", substituteHandler.Rewrite)

	// Live sessions
	apiGroup.Post("/sessions", sessionHandler.Create)
	apiGroup.Get("/sessions/:id", sessionHandler.Get)
	apiGroup.Delete("/sessions/:id", sessionHandler.Delete)
	apiGroup.Post("/sessions/:id/events", sessionHandler.Event)

	// Keyword admin routes
	admin := apiGroup.Group("/keywords", d.Auth.RequireToken)
	admin.Get("/", keywordHandler.Show)
	admin.Post("/refresh", keywordHandler.Refresh)
	admin.Delete("/cache", keywordHandler.Expire)

	// Stored pairs need a database
	if d.Pairs != nil {
		pairHandler := api.NewPairHandler(d.Pairs, d.Keywords)
		admin.Get("/pairs", pairHandler.List)
		admin.Post("/pairs", pairHandler.Create)
		admin.Get("/pairs/:id", pairHandler.Get)
		admin.Put("/pairs/:id", pairHandler.Update)
		admin.Delete("/pairs/:id", pairHandler.Delete)
		admin.Get("/hits", pairHandler.Hits)
	}
}
