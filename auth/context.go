// Package auth, as part of the authentication module.
// This file, `context.go`, deals with carrying the authenticated principal inside
// the request's `context.Context`. The context is Go's standard way to pass
// request-scoped values across API boundaries, so nothing is stored server-side.
package auth

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// `contextKey` is a custom type for context keys. Using a custom type prevents collisions
// with context keys defined in other packages.
type contextKey string

const principalContextKey contextKey = "auth_principal"

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Roles    []string
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// HasAnyRole reports whether the principal holds at least one of roles.
// An empty roles list is satisfied by any principal.
func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// NewContextWithPrincipal returns a child context carrying p.
func NewContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the Principal set by the Authenticator middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok && p != nil
}

// Authorize checks that ctx carries a principal holding one of roles.
// It returns ErrNoAuthContext or ErrInsufficientPermissions.
func Authorize(ctx context.Context, roles ...string) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrNoAuthContext
	}
	if !p.HasAnyRole(roles...) {
		return ErrInsufficientPermissions
	}
	return nil
}

// Common authorization errors, comparable with `errors.Is`.
var (
	ErrNoAuthContext           = &authError{message: "authentication required"}
	ErrInsufficientPermissions = &authError{message: "insufficient permissions"}
)

// authError implements the error interface for auth-specific errors
type authError struct {
	message string
}

func (e *authError) Error() string {
	return e.message
}
