package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/config"
	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/handler"
	"github.com/viajesandina/storefront-go/internal/infra/cache"
	"github.com/viajesandina/storefront-go/internal/infra/memory"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/infra/resilience"
	"github.com/viajesandina/storefront-go/internal/infra/supabase"
	"github.com/viajesandina/storefront-go/internal/port"
	"github.com/viajesandina/storefront-go/internal/service"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "storefront")
	if err != nil {
		logger.Warn("tracing disabled: exporter init failed", zap.Error(err))
		shutdownTracer = func(context.Context) error { return nil }
	}

	metrics := observability.NewMetrics()

	var (
		provider  port.IdentityProvider
		directory port.UserDirectory
		source    port.CatalogSource
	)
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cfg.SupabaseJWTSecret,
			logger,
		)
		provider, directory, source = client, client, client
		logger.Info("using supabase adapters", zap.String("url", cfg.SupabaseURL))
	} else {
		provider = memory.NewIdentityProvider()
		directory = memory.NewUserDirectory()
		source = memory.NewSeededCatalog()
		logger.Info("using in-memory adapters with seeded catalog")
	}

	sessions := service.NewSessionStore(provider, directory, metrics, logger)
	cart := service.NewCartStore(sessions.Role, metrics, logger)
	catalog := service.NewCatalogService(
		source,
		cache.New[[]domain.Product](cfg.CacheTTL),
		resilience.NewCircuitBreaker("catalog"),
		resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		metrics,
		logger,
	)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	if err := sessions.Initialize(initCtx); err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
	}
	cancelInit()
	defer sessions.Close()

	// The cart belongs to the customer session: empty it whenever the
	// session stops having cart access.
	unbindCart := service.BindCartToSession(sessions, cart)
	defer unbindCart()

	router := handler.NewRouter(sessions, cart, catalog, metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
}
