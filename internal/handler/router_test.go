package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/cache"
	"github.com/viajesandina/storefront-go/internal/infra/memory"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/infra/resilience"
	"github.com/viajesandina/storefront-go/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	sessions := service.NewSessionStore(memory.NewIdentityProvider(), memory.NewUserDirectory(), metrics, logger)
	if err := sessions.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	cart := service.NewCartStore(sessions.Role, metrics, logger)
	catalog := service.NewCatalogService(
		memory.NewSeededCatalog(),
		cache.New[[]domain.Product](time.Minute),
		resilience.NewCircuitBreaker("catalog"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		metrics,
		logger,
	)

	srv := httptest.NewServer(NewRouter(sessions, cart, catalog, metrics, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any) *http.Response {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/session", nil)
	session := decodeBody[sessionResponse](t, resp)
	if session.State != "anonymous" {
		t.Fatalf("expected anonymous before login, got %q", session.State)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", registerRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
		FullName: "Ana García",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	profile := decodeBody[domain.UserProfile](t, resp)
	if profile.Role != domain.RoleCustomer {
		t.Fatalf("expected default customer role, got %q", profile.Role)
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/session", nil)
	session = decodeBody[sessionResponse](t, resp)
	if session.State != "authenticated" || session.User == nil {
		t.Fatalf("expected authenticated session after register, got %+v", session)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", loginRequest{
		Email:    "ana@example.com",
		Password: "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", loginRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
}

func TestRouter_ProductFilters(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/v1/products", nil)
	all := decodeBody[[]domain.Product](t, resp)
	if len(all) == 0 {
		t.Fatal("expected seeded products")
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/products?search=PARIS", nil)
	filtered := decodeBody[[]domain.Product](t, resp)
	if len(filtered) != 1 || filtered[0].Destination != "Paris" {
		t.Fatalf("expected the Paris package, got %+v", filtered)
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/products?all_inclusive=true", nil)
	filtered = decodeBody[[]domain.Product](t, resp)
	for _, p := range filtered {
		if !p.AllInclusive {
			t.Fatalf("product %s is not all inclusive", p.Code)
		}
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/products?max_price=abc", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad max_price: expected 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/products/destinations", nil)
	destinations := decodeBody[[]string](t, resp)
	if len(destinations) != len(all) {
		t.Fatalf("expected %d unique destinations, got %d", len(all), len(destinations))
	}
}

func TestRouter_CartRequiresCustomer(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// Anonymous sessions cannot see or mutate the cart.
	resp := doJSON(t, client, http.MethodGet, srv.URL+"/v1/cart", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous cart view: expected 403, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", registerRequest{
		Email:    "sales@example.com",
		Password: "s3cret-pass",
		FullName: "Sales Rep",
		Role:     "sales",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cart/items", addItemRequest{ProductID: "anything"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("sales add item: expected 403, got %d", resp.StatusCode)
	}
}

func TestRouter_CartFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", registerRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
		FullName: "Ana García",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/products", nil)
	products := decodeBody[[]domain.Product](t, resp)
	if len(products) < 2 {
		t.Fatal("expected at least two seeded products")
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cart/items", addItemRequest{ProductID: products[0].ID})
	resp.Body.Close()
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cart/items", addItemRequest{ProductID: products[0].ID})
	resp.Body.Close()
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cart/items", addItemRequest{ProductID: products[1].ID})
	cart := decodeBody[cartResponse](t, resp)
	if cart.TotalItems != 3 {
		t.Fatalf("expected 3 items in cart, got %d", cart.TotalItems)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(cart.Items))
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cart/items", addItemRequest{ProductID: "missing"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown product: expected 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/cart/items/"+products[0].ID, updateQuantityRequest{Quantity: 0})
	cart = decodeBody[cartResponse](t, resp)
	if len(cart.Items) != 1 {
		t.Fatalf("expected zero quantity to remove the line item, got %d items", len(cart.Items))
	}

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/v1/cart/summary", nil)
	summary := decodeBody[cartSummaryResponse](t, resp)
	expectedTax := products[1].Price.Mul(taxRate).Round(2)
	if !summary.Tax.Equal(expectedTax) {
		t.Fatalf("expected tax %s, got %s", expectedTax, summary.Tax)
	}
	if !summary.Total.Equal(summary.Subtotal.Add(summary.Tax)) {
		t.Fatalf("total %s does not equal subtotal %s + tax %s", summary.Total, summary.Subtotal, summary.Tax)
	}

	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/cart", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear cart: expected 204, got %d", resp.StatusCode)
	}
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := doJSON(t, client, http.MethodGet, srv.URL+path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
