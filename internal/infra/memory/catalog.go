package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// Catalog is a fixed in-memory product catalog, returned newest first.
type Catalog struct {
	products []domain.Product
}

// NewCatalog creates a catalog with the given products, most recently
// created first.
func NewCatalog(products []domain.Product) *Catalog {
	sorted := make([]domain.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return &Catalog{products: sorted}
}

// NewSeededCatalog creates a catalog with a small set of travel
// packages, enough to exercise every filter.
func NewSeededCatalog() *Catalog {
	base := time.Now().Add(-30 * 24 * time.Hour)
	seed := []struct {
		code, name, description, destination string
		price                                string
		days                                 int
		flight, hotel, car, allInclusive     bool
	}{
		{"PKG-PAR-7", "Paris Getaway", "Seven nights in the city of light with guided museum tours", "Paris", "1299.99", 7, true, true, false, false},
		{"PKG-TYO-10", "Tokyo Explorer", "Ten days across Tokyo and Kyoto with rail pass included", "Tokyo", "2450.00", 10, true, true, false, false},
		{"PKG-CUN-5", "Cancún All Inclusive", "Five nights beachfront, meals and drinks included", "Cancún", "899.50", 5, true, true, false, true},
		{"PKG-PAT-12", "Patagonia Trek", "Twelve days hiking Torres del Paine, vehicle included", "Patagonia", "1875.00", 12, true, false, true, false},
		{"PKG-ROM-6", "Rome and Amalfi", "Six nights between Rome and the Amalfi coast", "Rome", "1150.25", 6, true, true, true, false},
		{"PKG-CUZ-4", "Cusco Express", "Four days in Cusco with a Machu Picchu day trip", "Cusco", "640.00", 4, false, true, false, false},
	}

	products := make([]domain.Product, 0, len(seed))
	for i, s := range seed {
		created := base.Add(time.Duration(i) * 24 * time.Hour)
		products = append(products, domain.Product{
			ID:                uuid.NewString(),
			Code:              s.code,
			Name:              s.name,
			Description:       s.description,
			Price:             decimal.RequireFromString(s.price),
			Destination:       s.destination,
			DurationDays:      s.days,
			IncludesFlight:    s.flight,
			IncludesHotel:     s.hotel,
			IncludesCarRental: s.car,
			AllInclusive:      s.allInclusive,
			CreatedAt:         created,
			UpdatedAt:         created,
		})
	}
	return NewCatalog(products)
}

func (c *Catalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}
