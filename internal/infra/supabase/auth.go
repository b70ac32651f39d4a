package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// refreshLeeway is how long before token expiry the background refresh
// fires.
const refreshLeeway = 30 * time.Second

// authResponse is the GoTrue token/signup response shape.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID string `json:"id"`
	} `json:"user"`
}

// SignInWithPassword performs the GoTrue password grant and installs
// the resulting session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodPost, "token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, errors.New("invalid login credentials")
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("gotrue returned status %d: %s", status, string(body))
	}

	session, err := c.installSession(body)
	if err != nil {
		return nil, err
	}

	c.emit(domain.AuthSignedIn, session)
	return session, nil
}

// SignUp creates a new identity and installs its session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodPost, "signup", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("gotrue returned status %d: %s", status, string(body))
	}

	session, err := c.installSession(body)
	if err != nil {
		return nil, err
	}

	c.emit(domain.AuthSignedIn, session)
	return session, nil
}

// SignOut revokes the current session on the provider side, then
// clears it locally and notifies subscribers.
func (c *Client) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	body, status, err := c.doAuth(ctx, http.MethodPost, "logout", nil, session.AccessToken)
	if err != nil {
		return err
	}
	// 401 means the token is already dead on the provider side, which
	// is as signed out as it gets.
	if status != http.StatusNoContent && status != http.StatusOK && status != http.StatusUnauthorized {
		return fmt.Errorf("gotrue returned status %d: %s", status, string(body))
	}

	c.clearSession()
	c.emit(domain.AuthSignedOut, nil)
	return nil
}

// GetSession returns the current session, refreshing it first when the
// access token has expired. (nil, nil) when no session is present.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}

	if err := c.validateAccessToken(session.AccessToken); err == nil {
		s := *session
		return &s, nil
	}

	if session.RefreshToken == "" {
		c.clearSession()
		return nil, nil
	}
	return c.refreshSession(ctx)
}

// refreshSession exchanges the refresh token for a new session and
// notifies subscribers.
func (c *Client) refreshSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil || session.RefreshToken == "" {
		return nil, nil
	}

	body, status, err := c.doAuth(ctx, http.MethodPost, "token?grant_type=refresh_token", map[string]string{
		"refresh_token": session.RefreshToken,
	}, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		c.logger.Warn("supabase: session refresh rejected",
			zap.Int("status", status),
			zap.String("user_id", session.UserID),
		)
		c.clearSession()
		c.emit(domain.AuthSignedOut, nil)
		return nil, fmt.Errorf("gotrue refresh returned status %d", status)
	}

	fresh, err := c.installSession(body)
	if err != nil {
		return nil, err
	}

	c.emit(domain.AuthSignedIn, fresh)
	return fresh, nil
}

// installSession decodes an auth response, stores the session and
// schedules the background refresh.
func (c *Client) installSession(body []byte) (*domain.Session, error) {
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	userID := resp.User.ID
	if userID == "" {
		// Fall back to the token's subject claim.
		if claims, err := c.parseClaims(resp.AccessToken); err == nil {
			userID = claims.Subject
		}
	}
	if userID == "" {
		return nil, errors.New("auth response carries no user id")
	}

	session := &domain.Session{
		UserID:       userID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}

	c.mu.Lock()
	c.session = session
	c.scheduleRefreshLocked(session)
	c.mu.Unlock()

	s := *session
	return &s, nil
}

// scheduleRefreshLocked arms the refresh timer for the given session.
// Caller holds c.mu.
func (c *Client) scheduleRefreshLocked(session *domain.Session) {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	if session.RefreshToken == "" {
		return
	}

	wait := time.Until(session.ExpiresAt) - refreshLeeway
	if wait < time.Second {
		wait = time.Second
	}

	c.refreshTimer = time.AfterFunc(wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.refreshSession(ctx); err != nil {
			c.logger.Warn("supabase: background session refresh failed", zap.Error(err))
		}
	})
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

// validateAccessToken checks signature and expiry of a GoTrue access
// token against the project JWT secret.
func (c *Client) validateAccessToken(tokenString string) error {
	_, err := c.parseClaims(tokenString)
	return err
}

func (c *Client) parseClaims(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}
	return claims, nil
}
