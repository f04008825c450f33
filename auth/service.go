// Package auth is responsible for handling authentication and authorization logic.
// This includes user registration, login, bearer token issuance and the
// password reset flow. In a Nest.js analogy, this directory would correspond to
// an "AuthModule", containing services, controllers (handlers in Go), DTOs and entities.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/logging"
	"github.com/user/ficticia-go/observability"
)

const (
	resetTokenBytes  = 32
	resetMailSubject = "Ficticia - Cambio de contraseña solicitado"

	// dummyPassword is hashed once at construction so unknown usernames cost
	// the same bcrypt comparison as wrong passwords.
	dummyPassword = "ficticia-timing-equalizer"

	msgInvalidCredentials = "invalid username or password"
	msgInvalidResetToken  = "invalid or expired reset token"
	msgPasswordMismatch   = "password and confirmation must match"
	msgDeliveryFailed     = "Imposible enviar el correo electrónico. Por favor, inténtalo de nuevo más tarde."
)

// Mailer delivers a plain-text message. It is the only outbound side effect of the service.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AuthService provides authentication-related services.
// Dependencies are injected explicitly through the constructor, the Go
// equivalent of constructor injection in Nest.js services.
type AuthService struct {
	users   CredentialStore
	roles   RoleStore
	hasher  PasswordHasher
	tokens  TokenCodec
	mailer  Mailer
	cfg     config.AuthConfig
	now     func() time.Time
	logger  *slog.Logger
	metrics *observability.Metrics

	dummyHash string
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the service logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users CredentialStore, roles RoleStore, hasher PasswordHasher, tokens TokenCodec, mailer Mailer, cfg config.AuthConfig, opts ...Option) (*AuthService, error) {
	switch {
	case users == nil:
		return nil, oops.Code("AUTH_SERVICE_INIT").Errorf("credential store is required")
	case roles == nil:
		return nil, oops.Code("AUTH_SERVICE_INIT").Errorf("role store is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_INIT").Errorf("password hasher is required")
	case tokens == nil:
		return nil, oops.Code("AUTH_SERVICE_INIT").Errorf("token codec is required")
	case mailer == nil:
		return nil, oops.Code("AUTH_SERVICE_INIT").Errorf("mailer is required")
	}

	s := &AuthService{
		users:  users,
		roles:  roles,
		hasher: hasher,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_SERVICE_INIT").Wrapf(err, "hashing timing equalizer")
	}
	s.dummyHash = dummy
	return s, nil
}

// Login authenticates a user and returns a bearer token.
// Unknown users, disabled users and wrong passwords all yield the same AuthError.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := ValidateRequest(req); err != nil {
		s.metrics.RecordLogin(observability.OutcomeValidation)
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, normalizeIdentifier(req.Username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(req.Password, s.dummyHash)
			s.metrics.RecordLogin(observability.OutcomeInvalidCredentials)
			return nil, apperror.NewAuthError(msgInvalidCredentials, nil)
		}
		s.metrics.RecordLogin(observability.OutcomeError)
		return nil, s.internal(ctx, "failed to load user for login", err)
	}

	if !user.Enabled {
		s.hasher.Verify(req.Password, s.dummyHash)
		s.metrics.RecordLogin(observability.OutcomeInvalidCredentials)
		return nil, apperror.NewAuthError(msgInvalidCredentials, nil)
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.metrics.RecordLogin(observability.OutcomeInvalidCredentials)
		return nil, apperror.NewAuthError(msgInvalidCredentials, nil)
	}

	roleNames, err := s.roleNames(ctx, user.RoleIDs)
	if err != nil {
		s.metrics.RecordLogin(observability.OutcomeError)
		return nil, s.internal(ctx, "failed to resolve roles for login", err)
	}

	token, err := s.tokens.Issue(user.Username, roleNames, s.now())
	if err != nil {
		s.metrics.RecordLogin(observability.OutcomeError)
		return nil, s.internal(ctx, "failed to issue token", err)
	}

	s.metrics.RecordLogin(observability.OutcomeSuccess)
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return &LoginResponse{Token: token, Username: user.Username, Roles: roleNames}, nil
}

// Register creates a new enabled user holding the default role.
// Field and password policy checks run before any store access; the
// uniqueness checks and the insert share one transaction.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	req = req.trimmed()
	if err := ValidateRequest(req); err != nil {
		s.metrics.RecordRegistration(observability.OutcomeValidation)
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		s.metrics.RecordRegistration(observability.OutcomeValidation)
		return nil, apperror.NewValidationError(err.Error(), err)
	}

	username := strings.ToLower(req.Username)
	email := strings.ToLower(req.Email)

	var created *User
	var roleName string
	err := s.users.WithinTx(ctx, func(ctx context.Context, users CredentialStore) error {
		if err := ensureAbsent(users.FindByUsername(ctx, username)); err != nil {
			return conflictOr(err, "username is already in use")
		}
		if err := ensureAbsent(users.FindByEmail(ctx, email)); err != nil {
			return conflictOr(err, "email is already in use")
		}
		if req.Password != req.ConfirmPassword {
			return apperror.NewPasswordMismatchError(msgPasswordMismatch)
		}

		role, err := s.roles.FindByName(ctx, s.cfg.DefaultRole)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperror.NewConfigError("default role is not configured",
					oops.Code("DEFAULT_ROLE_MISSING").With("role", s.cfg.DefaultRole).Wrap(err))
			}
			return err
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		user := &User{
			ID:           uuid.New(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FullName:     req.FullName,
			EmployeeID:   req.EmployeeID,
			Enabled:      true,
			RoleIDs:      []uuid.UUID{role.ID},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return apperror.NewConflictError("username or email is already in use", err)
			}
			return err
		}
		created = user
		roleName = role.Name
		return nil
	})
	if err != nil {
		s.metrics.RecordRegistration(outcomeFor(err))
		if appErr, ok := apperror.FromError(err); ok {
			if appErr.Type == apperror.ConfigError {
				logging.LogError(ctx, s.logger, "registration blocked by missing default role", appErr.Err)
			}
			return nil, appErr
		}
		return nil, s.internal(ctx, "failed to register user", err)
	}

	s.metrics.RecordRegistration(observability.OutcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID)
	return &RegisterResponse{Username: created.Username, Roles: []string{roleName}, Enabled: created.Enabled}, nil
}

// RequestPasswordReset stores a fresh reset token for the account owning email
// and mails a link to it. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req ForgotPasswordRequest) error {
	const stage = "request"
	if err := ValidateRequest(req); err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeValidation)
		return err
	}

	user, err := s.users.FindByEmail(ctx, normalizeIdentifier(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.RecordPasswordReset(stage, observability.OutcomeUnknownEmail)
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		s.metrics.RecordPasswordReset(stage, observability.OutcomeError)
		return s.internal(ctx, "failed to look up user for password reset", err)
	}

	token, err := generateResetToken()
	if err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeError)
		return s.internal(ctx, "failed to generate reset token", err)
	}
	// Only the token columns are written; a password change that lands after
	// the lookup above stays intact.
	now := s.now().UTC()
	if err := s.users.SetResetToken(ctx, user.ID, token, now.Add(s.cfg.ResetTokenTTL), now); err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeError)
		return s.internal(ctx, "failed to store reset token", err)
	}

	if err := s.mailer.Send(ctx, user.Email, resetMailSubject, s.resetMailBody(user.Username, token)); err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeDeliveryFailed)
		logging.LogError(ctx, s.logger, "failed to send password reset email", err, "user_id", user.ID)
		return apperror.NewExternalServiceError(msgDeliveryFailed, err)
	}

	s.metrics.RecordPasswordReset(stage, observability.OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset email sent", "user_id", user.ID)
	return nil
}

// ResetPassword replaces the password of the user holding token and clears the token.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	const stage = "reset"
	if err := ValidateRequest(req); err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeValidation)
		return err
	}
	if req.Password != req.ConfirmPassword {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeMismatch)
		return apperror.NewPasswordMismatchError(msgPasswordMismatch)
	}
	if err := ValidatePassword(req.Password); err != nil {
		s.metrics.RecordPasswordReset(stage, observability.OutcomeValidation)
		return apperror.NewValidationError(err.Error(), err)
	}

	var userID uuid.UUID
	err := s.users.WithinTx(ctx, func(ctx context.Context, users CredentialStore) error {
		user, err := users.FindByResetToken(ctx, req.Token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperror.NewInvalidTokenError(msgInvalidResetToken, nil)
			}
			return err
		}
		now := s.now()
		if !user.HasActiveResetToken(now) {
			return apperror.NewInvalidTokenError(msgInvalidResetToken, nil)
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return err
		}
		userID = user.ID
		return users.SetPassword(ctx, user.ID, hash, now.UTC())
	})
	if err != nil {
		s.metrics.RecordPasswordReset(stage, outcomeFor(err))
		if appErr, ok := apperror.FromError(err); ok {
			return appErr
		}
		return s.internal(ctx, "failed to reset password", err)
	}

	s.metrics.RecordPasswordReset(stage, observability.OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID)
	return nil
}

// ResolvePrincipal loads the enabled user named username with its current role names.
// It is used by the Authenticator middleware after a token verifies.
func (s *AuthService) ResolvePrincipal(ctx context.Context, username string) (*Principal, error) {
	user, err := s.users.FindByUsername(ctx, normalizeIdentifier(username))
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, oops.Code("USER_DISABLED").With("user_id", user.ID).Wrap(ErrNotFound)
	}
	roleNames, err := s.roleNames(ctx, user.RoleIDs)
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: user.ID, Username: user.Username, Roles: roleNames}, nil
}

func (s *AuthService) roleNames(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	roles, err := s.roles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return sortedRoleNames(roles), nil
}

func (s *AuthService) resetMailBody(username, token string) string {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s",
		strings.TrimRight(s.cfg.FrontendBaseURL, "/"), url.QueryEscape(token))

	var b strings.Builder
	b.WriteString("Hello " + username + ",\n\n")
	b.WriteString("Hemos recibido la petición para el cambio de clave. Ingresa en el link de abajo para cambiarla:\n")
	b.WriteString(link + "\n\n")
	b.WriteString("Si no has pedido el cambio de clave, ignora este mail.\n\n")
	b.WriteString("Saludos,\n")
	b.WriteString("Ficticia Security Team")
	return b.String()
}

// internal logs err and returns a generic InternalError that leaks nothing to the client.
func (s *AuthService) internal(ctx context.Context, msg string, err error) *apperror.AppError {
	logging.LogError(ctx, s.logger, msg, err)
	return apperror.NewInternalError("an unexpected error occurred", err)
}

// generateResetToken returns 32 random bytes, hex encoded.
func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ensureAbsent turns a store lookup into nil when nothing was found.
func ensureAbsent(_ *User, err error) error {
	if err == nil {
		return errDuplicateLookup
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

var errDuplicateLookup = errors.New("lookup matched an existing record")

func conflictOr(err error, msg string) error {
	if errors.Is(err, errDuplicateLookup) {
		return apperror.NewConflictError(msg, nil)
	}
	return err
}

func outcomeFor(err error) string {
	appErr, ok := apperror.FromError(err)
	if !ok {
		return observability.OutcomeError
	}
	switch appErr.Type {
	case apperror.ValidationError:
		return observability.OutcomeValidation
	case apperror.ConflictError:
		return observability.OutcomeConflict
	case apperror.PasswordMismatchError:
		return observability.OutcomeMismatch
	case apperror.InvalidTokenError:
		return observability.OutcomeInvalidToken
	default:
		return observability.OutcomeError
	}
}
