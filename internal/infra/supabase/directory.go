package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// User directory backed by the PostgREST "users" table.

// supabaseUser maps table columns to our domain.
type supabaseUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (u supabaseUser) toProfile() *domain.UserProfile {
	created, _ := time.Parse(time.RFC3339, u.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, u.UpdatedAt)
	return &domain.UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      domain.Role(u.Role),
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

// GetByID fetches the user profile for an identity id.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetByID")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s&limit=1", url.QueryEscape(id))
	body, err := c.doRest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}

	var rows []supabaseUser
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return rows[0].toProfile(), nil
}

// Insert creates the user profile row for a new identity.
func (c *Client) Insert(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()

	payload := map[string]any{
		"id":        profile.ID,
		"email":     profile.Email,
		"full_name": profile.FullName,
		"role":      string(profile.Role),
	}

	body, err := c.doRest(ctx, http.MethodPost, "users", payload)
	if err != nil {
		return nil, fmt.Errorf("create user profile: %w", err)
	}

	var rows []supabaseUser
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create user profile: empty representation")
	}
	return rows[0].toProfile(), nil
}
