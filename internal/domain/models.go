// Package domain holds the core models of the storefront:
// user profiles, travel packages and cart line items.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role governs which storefront features a user can see and use.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleSales        Role = "sales"
	RoleSalesManager Role = "sales_manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSales, RoleSalesManager:
		return true
	}
	return false
}

// UserProfile is the application-level user record kept in the user
// directory, keyed by the identity provider's user id.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a travel package from the external catalog. Read-only
// from this process's perspective.
type Product struct {
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
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CartItem is one product at a given quantity. Quantity is always >= 1;
// an update that would drop it to zero removes the item instead.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price × quantity for this line item.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Session is proof of an authenticated identity, opaque beyond
// presence, owning user id and expiry.
type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthEvent is a change notification from the identity provider.
type AuthEvent string

const (
	AuthSignedIn  AuthEvent = "signed_in"
	AuthSignedOut AuthEvent = "signed_out"
)

// SessionState is the session store's lifecycle state.
type SessionState int

const (
	// SessionUnresolved means Initialize has not completed yet.
	SessionUnresolved SessionState = iota
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unresolved"
	}
}

// StoreMetrics is a snapshot of storefront counters for the
// GET /v1/metrics/store endpoint.
type StoreMetrics struct {
	SignIns        int64   `json:"sign_ins"`
	SignInFailures int64   `json:"sign_in_failures"`
	CartMutations  int64   `json:"cart_mutations"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	TotalRequests  int64   `json:"total_requests"`
	ErrorRate      float64 `json:"error_rate"`
}
