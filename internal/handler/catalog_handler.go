package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/service"
)

// CatalogHandler exposes the product catalog with filtering.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// List handles GET /v1/products. Filters come from query parameters;
// absent parameters leave their predicate inactive.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := service.FilterCriteria{
		SearchText:          q.Get("search"),
		Destination:         q.Get("destination"),
		RequireFlight:       q.Get("flight") == "true",
		RequireHotel:        q.Get("hotel") == "true",
		RequireCar:          q.Get("car") == "true",
		RequireAllInclusive: q.Get("all_inclusive") == "true",
	}

	if raw := q.Get("max_price"); raw != "" {
		maxPrice, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_price must be a decimal number")
			return
		}
		criteria.MaxPrice = &maxPrice
	}

	products, err := h.catalog.Search(r.Context(), criteria)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Destinations handles GET /v1/products/destinations.
func (h *CatalogHandler) Destinations(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.catalog.ListDestinations(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, destinations)
}
