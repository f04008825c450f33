package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store sentinel errors. Implementations may wrap them but errors.Is must still match.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// CredentialStore persists user records. Username and email lookups are case-insensitive.
type CredentialStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)

	// Create inserts user with its role links. A username or email clash
	// returns an error matching ErrDuplicate.
	Create(ctx context.Context, user *User) error

	// Writes touch only their own columns, so concurrent flows on the same
	// user never overwrite each other's changes. A missing id returns an
	// error matching ErrNotFound.

	// SetResetToken stores a reset token and its expiry.
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error
	// SetPassword replaces the password hash and clears any reset token.
	SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
	// UpdateProfile sets the profile fields that are non-nil.
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, employeeID *string, at time.Time) error

	// ClearExpiredResetTokens removes reset tokens whose expiry is not after now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	// WithinTx runs fn against a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise; fn's
	// error is returned unchanged. Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx CredentialStore) error) error
}

// RoleStore persists the flat set of named roles.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	// Create returns an error matching ErrDuplicate when the name exists.
	Create(ctx context.Context, role *Role) error
}
