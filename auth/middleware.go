// Package auth, as part of the authentication module.
// This file, `middleware.go`, defines HTTP middleware related to authentication.
// Authenticator plays the role of a Passport strategy in Nest.js: it only
// identifies the caller. RequireAuth is the Guard that rejects requests.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/observability"
)

const bearerPrefix = "Bearer "

// PrincipalResolver loads the current principal for a verified token subject.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, username string) (*Principal, error)
}

// Authenticator verifies an `Authorization: Bearer <token>` header and, on
// success, attaches the subject's current Principal to the request context.
// Requests without a usable token continue unauthenticated; it never writes a response.
func Authenticator(codec TokenCodec, resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := codec.Verify(token, time.Now())
			if err != nil {
				logger.DebugContext(r.Context(), "bearer token rejected", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), identity.Subject)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logger.WarnContext(r.Context(), "failed to resolve token subject", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// RequireAuth rejects requests without a principal (401) or whose principal
// holds none of roles (403). With no roles, any authenticated caller passes.
func RequireAuth(metrics *observability.Metrics, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := Authorize(r.Context(), roles...); {
			case errors.Is(err, ErrNoAuthContext):
				metrics.RecordDenied(http.StatusUnauthorized)
				WriteError(w, r, apperror.NewAuthError("full authentication is required to access this resource", err))
			case errors.Is(err, ErrInsufficientPermissions):
				metrics.RecordDenied(http.StatusForbidden)
				WriteError(w, r, apperror.NewUnauthorizedError("access denied", err))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
