// Package auth, as part of the authentication module.
// This file, `handlers.go`, is responsible for handling HTTP requests related to authentication.
// It acts as the "Controller" layer, analogous to an `AuthController` in Nest.js.
package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/logging"
)

// maxBodyBytes bounds request bodies on the public auth endpoints.
const maxBodyBytes = 1 << 16

// Handlers wraps the AuthService to provide HTTP handlers
type Handlers struct {
	service *AuthService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{service: service}
}

// The `godoc` comments (like `@Summary`, `@Tags`, etc.) are annotations in the
// `swaggo/swag` format, similar to `@nestjs/swagger` decorators.

// HandleLogin godoc
// @Summary User Login
// @Description Verifies credentials and returns a bearer token with the user's roles.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "User login credentials"
// @Success 200 {object} auth.LoginResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid input or missing fields"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid credentials"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleRegister godoc
// @Summary User Registration
// @Description Registers a new enabled user holding the default role.
// @Tags Auth
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 201 {object} auth.RegisterResponse "User created successfully"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid input, weak password or password mismatch"
// @Failure 409 {object} apperror.ErrorResponse "Conflict - Username or email already in use"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		resp, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// HandleForgotPassword godoc
// @Summary Request Password Reset
// @Description Emails a reset link when the address belongs to an account. The response never reveals whether it does.
// @Tags Auth
// @Accept json
// @Param forgotBody body auth.ForgotPasswordRequest true "Account email"
// @Success 202 "Accepted"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid email"
// @Failure 502 {object} apperror.ErrorResponse "Bad Gateway - Reset email could not be delivered"
// @Router /auth/password/forgot [post]
func (h *Handlers) HandleForgotPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		if err := h.service.RequestPasswordReset(r.Context(), req); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleResetPassword godoc
// @Summary Reset Password
// @Description Sets a new password using a reset token. Tokens are single use.
// @Tags Auth
// @Accept json
// @Param resetBody body auth.ResetPasswordRequest true "Reset token and new password"
// @Success 204 "No Content"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid or expired token, weak password or mismatch"
// @Router /auth/password/reset [post]
func (h *Handlers) HandleResetPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		if err := h.service.ResetPassword(r.Context(), req); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DecodeJSON reads the request body into dst, writing a 400 and returning false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
		return false
	}
	return true
}

// WriteJSON serializes data with the given status. Exported for sibling packages' handlers.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// WriteError converts any error into the standard apperror.ErrorResponse.
// Errors that are not *AppError become a generic 500; server-side failures are logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}

	if appErr.StatusCode() >= http.StatusInternalServerError {
		logging.LogError(r.Context(), slog.Default(), "request failed", err,
			"method", r.Method, "path", r.URL.Path, "type", appErr.Type.String())
	}

	writeJSON(w, appErr.StatusCode(), appErr.ToResponse(r.URL.Path, time.Now()))
}
