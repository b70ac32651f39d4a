package memory

import (
	"context"
	"testing"

	"github.com/viajesandina/storefront-go/internal/domain"
)

func TestIdentityProvider_SignUpAndSignIn(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()

	created, err := p.SignUp(ctx, "ana@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if created.UserID == "" {
		t.Fatal("expected a user id on the new session")
	}

	if _, err := p.SignUp(ctx, "ana@example.com", "other"); err == nil {
		t.Fatal("expected conflict on duplicate sign up")
	}

	if _, err := p.SignInWithPassword(ctx, "ana@example.com", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}

	session, err := p.SignInWithPassword(ctx, "ana@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("SignInWithPassword failed: %v", err)
	}
	if session.UserID != created.UserID {
		t.Fatalf("user id changed across sign ins: %s != %s", session.UserID, created.UserID)
	}
}

func TestIdentityProvider_GetSessionAbsence(t *testing.T) {
	p := NewIdentityProvider()

	session, err := p.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session != nil {
		t.Fatal("expected no session before sign in")
	}
}

func TestIdentityProvider_SignOutNotifies(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()

	var events []domain.AuthEvent
	unsubscribe := p.OnAuthStateChange(func(event domain.AuthEvent, session *domain.Session) {
		events = append(events, event)
	})
	defer unsubscribe()

	if _, err := p.SignUp(ctx, "ana@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if len(events) != 2 || events[0] != domain.AuthSignedIn || events[1] != domain.AuthSignedOut {
		t.Fatalf("unexpected event sequence: %v", events)
	}

	session, err := p.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session != nil {
		t.Fatal("expected no session after sign out")
	}

	// Signing out twice must stay a no-op, with no extra event.
	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("second SignOut failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected no event for idempotent sign out, got %d", len(events))
	}
}
