// Package service holds the storefront's client-side state engines and
// pure logic: the session store, the cart store, the catalog filter and
// the access gate.
package service

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
	"github.com/viajesandina/storefront-go/internal/port"
)

var sessionTracer = otel.Tracer("service/session")

// SessionSnapshot is a read-only view of the session store's state.
type SessionSnapshot struct {
	State domain.SessionState
	User  *domain.UserProfile
}

// Role returns the authenticated role, or false when no user is
// resident.
func (s SessionSnapshot) Role() (domain.Role, bool) {
	if s.State != domain.SessionAuthenticated || s.User == nil {
		return "", false
	}
	return s.User.Role, true
}

// SessionStore is the single source of truth for who is using the
// storefront. It delegates credential handling to the identity
// provider, resolves profiles through the user directory, and stays
// consistent with asynchronous provider notifications.
//
// Each state change belongs to a resolution with a monotonically
// increasing start generation; a resolution only installs its result
// if nothing started later has been applied, so a stale in-flight
// Initialize can never overwrite a fresher notification-driven state.
type SessionStore struct {
	provider  port.IdentityProvider
	directory port.UserDirectory
	metrics   *observability.Metrics
	logger    *zap.Logger

	group   singleflight.Group
	subOnce sync.Once

	mu          sync.Mutex
	state       domain.SessionState
	user        *domain.UserProfile
	nextGen     uint64
	appliedGen  uint64
	subs        map[int]chan SessionSnapshot
	nextSubID   int
	hooks       map[int]func(SessionSnapshot)
	nextHookID  int
	unsubscribe func()
}

// NewSessionStore creates a session store in the Unresolved state.
// Call Initialize before serving dependent views.
func NewSessionStore(provider port.IdentityProvider, directory port.UserDirectory, metrics *observability.Metrics, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		provider:  provider,
		directory: directory,
		metrics:   metrics,
		logger:    logger,
		state:     domain.SessionUnresolved,
		subs:      make(map[int]chan SessionSnapshot),
		hooks:     make(map[int]func(SessionSnapshot)),
	}
}

// Initialize resolves any existing provider session and installs the
// matching profile, then subscribes to provider change notifications
// for the rest of the process lifetime. Absence of a session is a
// normal terminal state; resolution failures are logged, not fatal.
func (s *SessionStore) Initialize(ctx context.Context) error {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.Initialize")
	defer span.End()

	gen := s.beginResolution()

	sess, err := s.provider.GetSession(ctx)
	switch {
	case err != nil:
		s.logger.Warn("session: could not query provider session", zap.Error(err))
		s.apply(gen, domain.SessionAnonymous, nil)
	case sess == nil:
		s.apply(gen, domain.SessionAnonymous, nil)
	default:
		profile, err := s.resolveProfile(ctx, sess.UserID)
		if err != nil {
			s.logger.Warn("session: could not resolve profile for existing session",
				zap.String("user_id", sess.UserID),
				zap.Error(err),
			)
			s.apply(gen, domain.SessionAnonymous, nil)
		} else {
			s.apply(gen, domain.SessionAuthenticated, profile)
		}
	}

	s.subOnce.Do(func() {
		unsub := s.provider.OnAuthStateChange(s.handleAuthChange)
		s.mu.Lock()
		s.unsubscribe = unsub
		s.mu.Unlock()
	})

	return nil
}

// SignIn delegates credential verification to the provider and
// installs the resolved profile. On failure the current user is left
// unchanged.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignIn")
	defer span.End()
	span.SetAttributes(attribute.String("email", email))

	gen := s.beginResolution()

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.metrics.IncrSignIn("failure")
		s.logger.Warn("session: sign in rejected",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, &domain.ErrAuthentication{Reason: "invalid credentials", Err: err}
	}

	profile, err := s.resolveProfile(ctx, sess.UserID)
	if err != nil {
		s.metrics.IncrSignIn("failure")
		s.logger.Error("session: profile lookup failed after sign in",
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
		return nil, &domain.ErrAuthentication{Reason: "profile lookup failed", Err: err}
	}

	s.apply(gen, domain.SessionAuthenticated, profile)
	s.metrics.IncrSignIn("success")
	s.logger.Info("session: user signed in",
		zap.String("user_id", profile.ID),
		zap.String("role", string(profile.Role)),
	)
	return profile, nil
}

// SignUp creates an identity with the provider, then a directory
// profile with the requested role (customer when empty), then installs
// it as current. If the identity is created but the profile insert
// fails, the orphaned identity is surfaced through the returned
// ErrRegistration, never swallowed.
func (s *SessionStore) SignUp(ctx context.Context, email, password, fullName string, role domain.Role) (*domain.UserProfile, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignUp")
	defer span.End()
	span.SetAttributes(attribute.String("email", email))

	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "unknown role " + string(role)}
	}

	gen := s.beginResolution()

	sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.logger.Warn("session: identity creation rejected",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, &domain.ErrRegistration{Stage: domain.RegistrationStageIdentity, Err: err}
	}

	profile, err := s.directory.Insert(ctx, domain.UserProfile{
		ID:       sess.UserID,
		Email:    email,
		FullName: fullName,
		Role:     role,
	})
	if err != nil {
		s.logger.Error("session: identity created but profile insert failed, identity is orphaned",
			zap.String("user_id", sess.UserID),
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, &domain.ErrRegistration{Stage: domain.RegistrationStageProfile, Err: err}
	}

	s.apply(gen, domain.SessionAuthenticated, profile)
	s.logger.Info("session: user signed up",
		zap.String("user_id", profile.ID),
		zap.String("role", string(profile.Role)),
	)
	return profile, nil
}

// SignOut delegates to the provider, then clears the current user.
// If the provider call fails the current user is left unchanged so the
// caller does not falsely report "logged out".
func (s *SessionStore) SignOut(ctx context.Context) error {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignOut")
	defer span.End()

	gen := s.beginResolution()

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn("session: provider sign out failed, keeping current user", zap.Error(err))
		return &domain.ErrSignOut{Err: err}
	}

	s.apply(gen, domain.SessionAnonymous, nil)
	s.logger.Info("session: user signed out")
	return nil
}

// Snapshot returns the current read-only state.
func (s *SessionStore) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *SessionStore) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentUser returns a copy of the resident profile, or nil.
func (s *SessionStore) CurrentUser() *domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Role returns the authenticated role, or false when anonymous or
// unresolved.
func (s *SessionStore) Role() (domain.Role, bool) {
	return s.Snapshot().Role()
}

// Subscribe registers a snapshot channel. The channel coalesces: a
// slow subscriber may miss intermediate states, but the latest applied
// snapshot is always delivered. The returned function unregisters and
// closes the channel.
func (s *SessionStore) Subscribe() (<-chan SessionSnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan SessionSnapshot, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Close unregisters the provider subscription.
func (s *SessionStore) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// handleAuthChange processes provider notifications in delivery order.
func (s *SessionStore) handleAuthChange(event domain.AuthEvent, sess *domain.Session) {
	gen := s.beginResolution()

	if event == domain.AuthSignedOut || sess == nil {
		if s.apply(gen, domain.SessionAnonymous, nil) {
			s.logger.Info("session: cleared by provider notification")
		}
		return
	}

	profile, err := s.resolveProfile(context.Background(), sess.UserID)
	if err != nil {
		// Keep the previous state; a later notification or explicit
		// operation will converge.
		s.logger.Warn("session: could not resolve profile for notification",
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
		return
	}
	s.apply(gen, domain.SessionAuthenticated, profile)
}

// resolveProfile looks up a directory profile, coalescing concurrent
// lookups for the same user id.
func (s *SessionStore) resolveProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.directory.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	profile, ok := v.(*domain.UserProfile)
	if !ok || profile == nil {
		return nil, &domain.ErrNotFound{Resource: "user profile", ID: userID}
	}
	return profile, nil
}

func (s *SessionStore) beginResolution() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGen++
	return s.nextGen
}

// apply installs the result of the resolution started at gen unless a
// later-started resolution has already been applied. Reports whether
// the result was installed.
//
// Fan-out happens under the mutex so sends are serialized; a full
// subscriber channel is drained first so the newest snapshot replaces
// the stale one instead of being dropped.
func (s *SessionStore) apply(gen uint64, state domain.SessionState, user *domain.UserProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.appliedGen {
		s.logger.Debug("session: stale resolution dropped", zap.Uint64("generation", gen))
		return false
	}
	s.appliedGen = gen
	s.state = state
	s.user = user

	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	ids := make([]int, 0, len(s.hooks))
	for id := range s.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.hooks[id](snap)
	}
	return true
}

// registerApplyHook runs fn synchronously after every applied state
// change, in apply order, so no transition can be missed. fn must not
// call back into the store. The returned function unregisters it.
func (s *SessionStore) registerApplyHook(fn func(SessionSnapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextHookID
	s.nextHookID++
	s.hooks[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, id)
	}
}

func (s *SessionStore) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{State: s.state}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}
