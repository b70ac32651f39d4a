package domain

import "fmt"

// Error types for consistent error handling across the storefront core.

// Registration stages, used by ErrRegistration to tell a failed
// identity creation apart from an orphaned identity (identity created,
// profile insert failed).
const (
	RegistrationStageIdentity = "identity"
	RegistrationStageProfile  = "profile"
)

// ErrAuthentication indicates a sign-in failure: bad credentials or a
// directory lookup failure during sign-in. Recoverable by retrying
// with other credentials.
type ErrAuthentication struct {
	Reason string
	Err    error
}

func (e *ErrAuthentication) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *ErrAuthentication) Unwrap() error { return e.Err }

// ErrRegistration indicates a sign-up failure. Stage "profile" means
// the identity was created but the profile insert failed, leaving an
// orphaned identity behind — callers must surface that distinctly.
type ErrRegistration struct {
	Stage string
	Err   error
}

func (e *ErrRegistration) Error() string {
	return fmt.Sprintf("registration failed at %s stage: %v", e.Stage, e.Err)
}

func (e *ErrRegistration) Unwrap() error { return e.Err }

// OrphanedIdentity reports whether the failure left an identity
// without a matching directory profile.
func (e *ErrRegistration) OrphanedIdentity() bool {
	return e.Stage == RegistrationStageProfile
}

// ErrSignOut indicates the identity provider rejected a sign-out.
// The current user is left unchanged.
type ErrSignOut struct {
	Err error
}

func (e *ErrSignOut) Error() string {
	return fmt.Sprintf("sign out failed: %v", e.Err)
}

func (e *ErrSignOut) Unwrap() error { return e.Err }

// ErrFetch indicates a catalog load failure. Cart and session state
// are unaffected.
type ErrFetch struct {
	Resource string
	Err      error
}

func (e *ErrFetch) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Resource, e.Err)
}

func (e *ErrFetch) Unwrap() error { return e.Err }

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates a uniqueness violation (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string { return e.Message }

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotPermitted indicates the acting role may not perform an action.
type ErrNotPermitted struct {
	Role   Role
	Action string
}

func (e *ErrNotPermitted) Error() string {
	role := string(e.Role)
	if role == "" {
		role = "anonymous"
	}
	return fmt.Sprintf("role %q is not permitted to %s", role, e.Action)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error { return e.Err }

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}
