package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/service"
)

// NewRouter builds the HTTP router with all storefront routes.
func NewRouter(
	sessions *service.SessionStore,
	cart *service.CartStore,
	catalog *service.CatalogService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.MetricsMiddleware(metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	authHandler := NewAuthHandler(sessions, logger)
	catalogHandler := NewCatalogHandler(catalog, logger)
	cartHandler := NewCartHandler(cart, catalog, sessions, logger)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogHandler.List)
			r.Get("/destinations", catalogHandler.Destinations)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Get("/summary", cartHandler.Summary)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{productID}", cartHandler.UpdateQuantity)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
		})

		r.Get("/metrics/store", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, metrics.GetStoreSnapshot())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if sessions.State() == domain.SessionUnresolved {
			writeError(w, http.StatusServiceUnavailable, "session store not initialized")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
