package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/service"
)

// taxRate is the IVA applied to the cart summary.
var taxRate = decimal.RequireFromString("0.21")

// CartHandler exposes the shopping cart. Mutations require the
// customer role; the cart store enforces it and the handler maps the
// denial to 403.
type CartHandler struct {
	cart     *service.CartStore
	catalog  *service.CatalogService
	sessions *service.SessionStore
	logger   *zap.Logger
}

func NewCartHandler(cart *service.CartStore, catalog *service.CatalogService, sessions *service.SessionStore, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, catalog: catalog, sessions: sessions, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

type cartSummaryResponse struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
}

// Get handles GET /v1/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	if role, _ := h.sessions.Role(); !service.CanUseCart(role) {
		handleServiceError(w, h.logger, &domain.ErrNotPermitted{Role: role, Action: "view the cart"})
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

// AddItem handles POST /v1/cart/items. The product must exist in the
// current catalog.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	var product *domain.Product
	for i := range products {
		if products[i].ID == req.ProductID {
			product = &products[i]
			break
		}
	}
	if product == nil {
		handleServiceError(w, h.logger, &domain.ErrNotFound{Resource: "product", ID: req.ProductID})
		return
	}

	if err := h.cart.AddItem(*product); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

// UpdateQuantity handles PATCH /v1/cart/items/{productID}. Quantity
// zero or below removes the item.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.cart.UpdateQuantity(productID, req.Quantity); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

// RemoveItem handles DELETE /v1/cart/items/{productID}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	if err := h.cart.RemoveItem(productID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

// Clear handles DELETE /v1/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /v1/cart/summary: subtotal, 21% tax and grand
// total, all at exact decimal precision.
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if role, _ := h.sessions.Role(); !service.CanUseCart(role) {
		handleServiceError(w, h.logger, &domain.ErrNotPermitted{Role: role, Action: "view the cart summary"})
		return
	}

	subtotal := h.cart.TotalPrice()
	tax := subtotal.Mul(taxRate).Round(2)
	writeJSON(w, http.StatusOK, cartSummaryResponse{
		TotalItems: h.cart.TotalItems(),
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal.Add(tax),
	})
}

func (h *CartHandler) cartView() cartResponse {
	return cartResponse{
		Items:      h.cart.Items(),
		TotalItems: h.cart.TotalItems(),
		TotalPrice: h.cart.TotalPrice(),
	}
}
