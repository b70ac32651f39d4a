package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// Product catalog backed by the PostgREST "products" table.

// supabaseProduct maps table columns.
type supabaseProduct struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	ImageURL          string          `json:"image_url"`
	Destination       string          `json:"destination"`
	DurationDays      int             `json:"duration_days"`
	IncludesFlight    bool            `json:"includes_flight"`
	IncludesHotel     bool            `json:"includes_hotel"`
	IncludesCarRental bool            `json:"includes_car_rental"`
	AllInclusive      bool            `json:"all_inclusive"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// ListProducts fetches the catalog, newest first.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProducts")
	defer span.End()

	body, err := c.doRest(ctx, http.MethodGet, "products?select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return []domain.Product{}, nil
	}

	var rows []supabaseProduct
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		created, _ := time.Parse(time.RFC3339, r.CreatedAt)
		updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
		products = append(products, domain.Product{
			ID:                r.ID,
			Code:              r.Code,
			Name:              r.Name,
			Description:       r.Description,
			Price:             r.Price,
			ImageURL:          r.ImageURL,
			Destination:       r.Destination,
			DurationDays:      r.DurationDays,
			IncludesFlight:    r.IncludesFlight,
			IncludesHotel:     r.IncludesHotel,
			IncludesCarRental: r.IncludesCarRental,
			AllInclusive:      r.AllInclusive,
			CreatedAt:         created,
			UpdatedAt:         updated,
		})
	}
	return products, nil
}
