// Package port defines the interfaces (ports) for external
// collaborators. Following hexagonal architecture, these ports
// decouple the stores and services from concrete adapters.
package port

import (
	"context"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// IdentityProvider is the external authentication service. It owns
// credential verification and session issuance; this core only
// observes session presence and change notifications.
type IdentityProvider interface {
	// SignInWithPassword verifies credentials and issues a session.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)

	// SignUp creates a new identity and issues a session for it.
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)

	// SignOut terminates the current session on the provider side.
	SignOut(ctx context.Context) error

	// GetSession returns the existing session, or (nil, nil) when
	// no session is present. Absence is not an error.
	GetSession(ctx context.Context) (*domain.Session, error)

	// OnAuthStateChange registers a handler for session change
	// notifications. Handlers are invoked in delivery order. The
	// returned function unregisters the handler.
	OnAuthStateChange(handler func(event domain.AuthEvent, session *domain.Session)) (unsubscribe func())
}

// UserDirectory maps authenticated identities to application user
// profiles carrying a role.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.UserProfile, error)
	Insert(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error)
}

// CatalogSource supplies the product catalog, sorted by creation time
// descending.
type CatalogSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
