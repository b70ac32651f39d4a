// Package supabase provides adapters for Supabase: GoTrue as the
// identity provider and PostgREST for the user directory and the
// product catalog.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase GoTrue and PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	anonKey        string
	serviceRoleKey string
	jwtSecret      []byte
	logger         *zap.Logger

	mu           sync.Mutex
	session      *domain.Session
	refreshTimer *time.Timer

	handlersMu    sync.Mutex
	handlers      map[int]func(domain.AuthEvent, *domain.Session)
	nextHandlerID int
}

// NewClient creates a Supabase client. jwtSecret is the project's JWT
// secret, used to validate access tokens locally.
func NewClient(httpClient *http.Client, baseURL, anonKey, serviceRoleKey, jwtSecret string, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		jwtSecret:      []byte(jwtSecret),
		logger:         logger,
		handlers:       make(map[int]func(domain.AuthEvent, *domain.Session)),
	}
}

// doRest executes an authenticated request against PostgREST.
// Returns (nil, nil) on 404/204.
func (c *Client) doRest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("supabase: %s", string(respBody))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return respBody, nil
}

// doAuth executes a request against GoTrue. bearer defaults to the
// anon key when empty.
func (c *Client) doAuth(ctx context.Context, method, path string, payload any, bearer string) ([]byte, int, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}

	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: auth request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return respBody, resp.StatusCode, nil
}

// emit dispatches an auth event to all registered handlers, serialized
// so every handler observes events in delivery order.
func (c *Client) emit(event domain.AuthEvent, session *domain.Session) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	ids := make([]int, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		var copied *domain.Session
		if session != nil {
			s := *session
			copied = &s
		}
		c.handlers[id](event, copied)
	}
}

// OnAuthStateChange registers a session change handler and returns a
// function that unregisters it.
func (c *Client) OnAuthStateChange(handler func(event domain.AuthEvent, session *domain.Session)) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[id] = handler

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.handlers, id)
	}
}
