package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/service"
)

// AuthHandler exposes the session lifecycle.
type AuthHandler struct {
	sessions *service.SessionStore
	logger   *zap.Logger
}

func NewAuthHandler(sessions *service.SessionStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	State string              `json:"state"`
	User  *domain.UserProfile `json:"user,omitempty"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	profile, err := h.sessions.SignUp(r.Context(), req.Email, req.Password, req.FullName, domain.Role(req.Role))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	profile, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /v1/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		State: snap.State.String(),
		User:  snap.User,
	})
}
