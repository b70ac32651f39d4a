// Package memory provides in-memory adapters for local development and
// tests: an identity provider, a user directory and a seeded product
// catalog.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viajesandina/storefront-go/internal/domain"
)

const sessionTTL = time.Hour

type account struct {
	id           string
	passwordHash []byte
}

// IdentityProvider keeps identities and the current session in process
// memory. Passwords are bcrypt-hashed even here so the sign-in path
// behaves like the real provider.
type IdentityProvider struct {
	mu       sync.Mutex
	accounts map[string]account
	session  *domain.Session

	handlersMu    sync.Mutex
	handlers      map[int]func(domain.AuthEvent, *domain.Session)
	nextHandlerID int
}

func NewIdentityProvider() *IdentityProvider {
	return &IdentityProvider{
		accounts: make(map[string]account),
		handlers: make(map[int]func(domain.AuthEvent, *domain.Session)),
	}
}

// SignInWithPassword verifies the stored hash and issues a session.
func (p *IdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()

	if !ok {
		return nil, errors.New("invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, errors.New("invalid login credentials")
	}

	session := p.installSession(acct.id)
	p.emit(domain.AuthSignedIn, session)
	return session, nil
}

// SignUp creates a new identity and signs it in.
func (p *IdentityProvider) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}
	acct := account{id: uuid.NewString(), passwordHash: hash}
	p.accounts[email] = acct
	p.mu.Unlock()

	session := p.installSession(acct.id)
	p.emit(domain.AuthSignedIn, session)
	return session, nil
}

// SignOut clears the current session and notifies subscribers. Signing
// out without a session is a no-op.
func (p *IdentityProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.session != nil
	p.session = nil
	p.mu.Unlock()

	if had {
		p.emit(domain.AuthSignedOut, nil)
	}
	return nil
}

// GetSession returns the current session, or (nil, nil) when absent or
// expired.
func (p *IdentityProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, nil
	}
	if time.Now().After(p.session.ExpiresAt) {
		p.session = nil
		return nil, nil
	}
	s := *p.session
	return &s, nil
}

// OnAuthStateChange registers a session change handler and returns a
// function that unregisters it.
func (p *IdentityProvider) OnAuthStateChange(handler func(event domain.AuthEvent, session *domain.Session)) func() {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()

	id := p.nextHandlerID
	p.nextHandlerID++
	p.handlers[id] = handler

	return func() {
		p.handlersMu.Lock()
		defer p.handlersMu.Unlock()
		delete(p.handlers, id)
	}
}

func (p *IdentityProvider) installSession(userID string) *domain.Session {
	session := &domain.Session{
		UserID:       userID,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(sessionTTL),
	}

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	s := *session
	return &s
}

// emit dispatches to handlers in registration order, serialized so
// every handler observes events in delivery order.
func (p *IdentityProvider) emit(event domain.AuthEvent, session *domain.Session) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()

	ids := make([]int, 0, len(p.handlers))
	for id := range p.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		var copied *domain.Session
		if session != nil {
			s := *session
			copied = &s
		}
		p.handlers[id](event, copied)
	}
}
