package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/cache"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/infra/resilience"
)

func testProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "p1",
			Name:        "Paris Getaway",
			Description: "Seven nights in the city of light",
			Destination: "Paris",
			Price:       decimal.RequireFromString("1299.99"),

			IncludesFlight: true,
			IncludesHotel:  true,
		},
		{
			ID:          "p2",
			Name:        "Tokyo Explorer",
			Description: "Ten days across Tokyo and Kyoto",
			Destination: "Tokyo",
			Price:       decimal.RequireFromString("2450.00"),

			IncludesFlight: true,
			IncludesHotel:  true,
		},
		{
			ID:          "p3",
			Name:        "Beach Week",
			Description: "All inclusive week near Paris Beach Resort",
			Destination: "Cancún",
			Price:       decimal.RequireFromString("899.50"),

			IncludesFlight:    true,
			IncludesHotel:     true,
			IncludesCarRental: true,
			AllInclusive:      true,
		},
	}
}

func TestFilterProducts_SearchIsCaseInsensitive(t *testing.T) {
	products := testProducts()

	got := FilterProducts(products, FilterCriteria{SearchText: "PARIS"})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches (name and description), got %d", len(got))
	}
	if got[0].ID != "p1" || got[1].ID != "p3" {
		t.Fatalf("expected original order preserved, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestFilterProducts_SearchSpansFields(t *testing.T) {
	products := testProducts()

	// Destination match only.
	if got := FilterProducts(products, FilterCriteria{SearchText: "cancún"}); len(got) != 1 || got[0].ID != "p3" {
		t.Fatalf("expected the Cancún package, got %+v", got)
	}
	// Description match only.
	if got := FilterProducts(products, FilterCriteria{SearchText: "kyoto"}); len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("expected the Tokyo package, got %+v", got)
	}
}

func TestFilterProducts_DestinationIsExact(t *testing.T) {
	products := testProducts()

	if got := FilterProducts(products, FilterCriteria{Destination: "Paris"}); len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected exact destination match, got %+v", got)
	}
	// Destination equality is not case folded.
	if got := FilterProducts(products, FilterCriteria{Destination: "paris"}); len(got) != 0 {
		t.Fatalf("expected no match for lowercased destination, got %+v", got)
	}
}

func TestFilterProducts_MaxPriceIsInclusive(t *testing.T) {
	products := testProducts()

	exact := decimal.RequireFromString("1299.99")
	got := FilterProducts(products, FilterCriteria{MaxPrice: &exact})
	if len(got) != 2 {
		t.Fatalf("expected products at or below the bound, got %d", len(got))
	}
	for _, p := range got {
		if p.Price.GreaterThan(exact) {
			t.Fatalf("product %s exceeds the bound", p.ID)
		}
	}

	below := decimal.RequireFromString("1299.98")
	if got := FilterProducts(products, FilterCriteria{MaxPrice: &below}); len(got) != 1 {
		t.Fatalf("expected only the cheapest product, got %d", len(got))
	}
}

func TestFilterProducts_FlagsCombineWithAnd(t *testing.T) {
	products := testProducts()

	got := FilterProducts(products, FilterCriteria{RequireFlight: true, RequireCar: true})
	if len(got) != 1 || got[0].ID != "p3" {
		t.Fatalf("expected only the package with flight and car, got %+v", got)
	}

	got = FilterProducts(products, FilterCriteria{RequireAllInclusive: true, Destination: "Paris"})
	if len(got) != 0 {
		t.Fatalf("expected AND of predicates to exclude everything, got %+v", got)
	}
}

func TestFilterProducts_EmptyCriteriaAndIdempotence(t *testing.T) {
	products := testProducts()

	first := FilterProducts(products, FilterCriteria{})
	if len(first) != len(products) {
		t.Fatalf("empty criteria must keep all products, got %d", len(first))
	}

	criteria := FilterCriteria{SearchText: "paris", RequireHotel: true}
	once := FilterProducts(products, criteria)
	twice := FilterProducts(once, criteria)
	if len(once) != len(twice) {
		t.Fatalf("filtering is not idempotent: %d != %d", len(once), len(twice))
	}

	if len(products) != 3 {
		t.Fatal("input slice was modified")
	}
}

func TestDestinations_UniqueFirstSeen(t *testing.T) {
	products := append(testProducts(), domain.Product{ID: "p4", Destination: "Paris"})

	got := Destinations(products)
	want := []string{"Paris", "Tokyo", "Cancún"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

// fakeSource is a scriptable catalog source.
type fakeSource struct {
	products []domain.Product
	err      error
	calls    int
}

func (f *fakeSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func newCatalogService(source *fakeSource) *CatalogService {
	return NewCatalogService(
		source,
		cache.New[[]domain.Product](time.Minute),
		resilience.NewCircuitBreaker("catalog"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func TestCatalogService_CachesProducts(t *testing.T) {
	source := &fakeSource{products: testProducts()}
	svc := newCatalogService(source)

	for i := 0; i < 3; i++ {
		products, err := svc.ListProducts(context.Background())
		if err != nil {
			t.Fatalf("ListProducts failed: %v", err)
		}
		if len(products) != 3 {
			t.Fatalf("expected 3 products, got %d", len(products))
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one source fetch, got %d", source.calls)
	}

	svc.Invalidate()
	if _, err := svc.ListProducts(context.Background()); err != nil {
		t.Fatalf("ListProducts after Invalidate failed: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected a refetch after Invalidate, got %d calls", source.calls)
	}
}

func TestCatalogService_FetchFailureIsErrFetch(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc := newCatalogService(source)

	_, err := svc.ListProducts(context.Background())
	var fetchErr *domain.ErrFetch
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestCatalogService_SearchAppliesCriteria(t *testing.T) {
	source := &fakeSource{products: testProducts()}
	svc := newCatalogService(source)

	got, err := svc.Search(context.Background(), FilterCriteria{Destination: "Tokyo"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("expected the Tokyo package, got %+v", got)
	}

	destinations, err := svc.ListDestinations(context.Background())
	if err != nil {
		t.Fatalf("ListDestinations failed: %v", err)
	}
	if len(destinations) != 3 {
		t.Fatalf("expected 3 destinations, got %d", len(destinations))
	}
}
