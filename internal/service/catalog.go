package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/infra/resilience"
	"github.com/viajesandina/storefront-go/internal/port"
)

var catalogTracer = otel.Tracer("service/catalog")

const productsCacheKey = "products"

// FilterCriteria narrows the product list. Zero values deactivate a
// predicate; active predicates are combined with logical AND.
type FilterCriteria struct {
	// SearchText matches case-insensitively against name, destination
	// or description (substring, OR across fields).
	SearchText string
	// Destination is an exact-match equality filter.
	Destination string
	// MaxPrice is an inclusive upper bound.
	MaxPrice *decimal.Decimal
	// Require* flags restrict to products carrying the attribute.
	RequireFlight       bool
	RequireHotel        bool
	RequireCar          bool
	RequireAllInclusive bool
}

// FilterProducts returns the products matching the criteria, preserving
// the original relative order. Pure: the input slice is not modified.
func FilterProducts(products []domain.Product, c FilterCriteria) []domain.Product {
	search := strings.ToLower(strings.TrimSpace(c.SearchText))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Destination), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if c.Destination != "" && p.Destination != c.Destination {
			continue
		}
		if c.MaxPrice != nil && p.Price.GreaterThan(*c.MaxPrice) {
			continue
		}
		if c.RequireFlight && !p.IncludesFlight {
			continue
		}
		if c.RequireHotel && !p.IncludesHotel {
			continue
		}
		if c.RequireCar && !p.IncludesCarRental {
			continue
		}
		if c.RequireAllInclusive && !p.AllInclusive {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Destinations returns the unique destinations in first-seen order.
func Destinations(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.Destination]; ok {
			continue
		}
		seen[p.Destination] = struct{}{}
		out = append(out, p.Destination)
	}
	return out
}

// CatalogService fetches the product list from the external catalog
// source, with a TTL cache and resilience around the fetch. Fetch
// failures surface as ErrFetch; cart and session state are unaffected.
type CatalogService struct {
	source   port.CatalogSource
	cache    port.Cache[[]domain.Product]
	cb       *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	cfg      resilience.Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(source port.CatalogSource, cache port.Cache[[]domain.Product], cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *CatalogService {
	cfg = cfg.WithDefaults()
	return &CatalogService{
		source:   source,
		cache:    cache,
		cb:       cb,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// ListProducts returns the catalog, sorted by creation time descending
// as supplied by the source.
func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	if cached, ok := s.cache.Get(productsCacheKey); ok {
		s.metrics.IncrCacheHit("products")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("products")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrFetch{Resource: "products", Err: err}
	}
	defer s.bulkhead.Release()

	start := time.Now()
	var products []domain.Product

	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			var err error
			products, err = s.source.ListProducts(ctx)
			return err
		})
	})
	if err != nil {
		s.metrics.IncrExternalError("catalog")
		s.logger.Error("catalog: fetch failed", zap.Error(err))
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "catalog"}
		}
		return nil, &domain.ErrFetch{Resource: "products", Err: err}
	}

	s.metrics.RecordRequestDuration("catalog_fetch", time.Since(start))
	span.SetAttributes(attribute.Int("catalog.size", len(products)))

	s.cache.Set(productsCacheKey, products)
	return products, nil
}

// Search fetches the catalog and applies the filter criteria.
func (s *CatalogService) Search(ctx context.Context, criteria FilterCriteria) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterProducts(products, criteria), nil
}

// ListDestinations fetches the catalog and returns its unique
// destinations.
func (s *CatalogService) ListDestinations(ctx context.Context) ([]string, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return Destinations(products), nil
}

// Invalidate drops the cached catalog so the next read refetches.
func (s *CatalogService) Invalidate() {
	s.cache.Delete(productsCacheKey)
}
