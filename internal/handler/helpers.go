// Package handler exposes the storefront core over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		authErr       *domain.ErrAuthentication
		regErr        *domain.ErrRegistration
		signOutErr    *domain.ErrSignOut
		fetchErr      *domain.ErrFetch
		notFoundErr   *domain.ErrNotFound
		conflictErr   *domain.ErrConflict
		validationErr *domain.ErrValidation
		permErr       *domain.ErrNotPermitted
		externalErr   *domain.ErrExternalService
		circuitErr    *domain.ErrCircuitOpen
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, authErr.Error())
	case errors.As(err, &permErr):
		writeError(w, http.StatusForbidden, permErr.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &regErr):
		writeError(w, http.StatusUnprocessableEntity, regErr.Error())
	case errors.As(err, &fetchErr):
		writeError(w, http.StatusBadGateway, fetchErr.Error())
	case errors.As(err, &signOutErr):
		writeError(w, http.StatusBadGateway, signOutErr.Error())
	case errors.As(err, &externalErr):
		writeError(w, http.StatusBadGateway, externalErr.Error())
	case errors.As(err, &circuitErr):
		writeError(w, http.StatusServiceUnavailable, circuitErr.Error())
	default:
		logger.Error("handler: unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
