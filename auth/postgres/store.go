// Package postgres implements the auth store contracts on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/user/ficticia-go/auth"
)

// Querier is the statement surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a Querier that can start transactions.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const userColumns = `id::text, username, email, password_hash, full_name, employee_id, enabled,
	       password_reset_token, password_reset_token_expires_at, created_at, updated_at`

// UserStore implements auth.CredentialStore.
type UserStore struct {
	pool Pool
	q    Querier
	inTx bool
}

var _ auth.CredentialStore = (*UserStore)(nil)

// NewUserStore creates a UserStore on pool.
func NewUserStore(pool Pool) *UserStore {
	return &UserStore{pool: pool, q: pool}
}

// FindByID retrieves a user by ID.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.findOne(ctx, "id", id.String(), `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())
}

// FindByUsername retrieves a user by username (case-insensitive).
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findOne(ctx, "username", username, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)
}

// FindByEmail retrieves a user by email (case-insensitive).
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, "email", email, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)
}

// FindByResetToken retrieves the user holding token. Inside a transaction the row is locked.
func (s *UserStore) FindByResetToken(ctx context.Context, token string) (*auth.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE password_reset_token = $1
	`
	if s.inTx {
		query += "FOR UPDATE\n"
	}
	// The token itself is never attached to error context.
	return s.findOne(ctx, "reset_token", "<redacted>", query, token)
}

// Create inserts the user row and its role links atomically.
func (s *UserStore) Create(ctx context.Context, user *auth.User) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx auth.CredentialStore) error {
		ts := tx.(*UserStore)
		_, err := ts.q.Exec(ctx, `
			INSERT INTO users (
				id, username, email, password_hash, full_name, employee_id, enabled,
				password_reset_token, password_reset_token_expires_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			user.ID.String(),
			user.Username,
			user.Email,
			user.PasswordHash,
			user.FullName,
			user.EmployeeID,
			user.Enabled,
			user.ResetToken,
			user.ResetTokenExpiresAt,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return wrapWriteError(err, "USER_CREATE_FAILED", "insert user", user.Username)
		}

		for _, roleID := range user.RoleIDs {
			if _, err := ts.q.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			`, user.ID.String(), roleID.String()); err != nil {
				return wrapWriteError(err, "USER_CREATE_FAILED", "link role", user.Username)
			}
		}
		return nil
	})
}

// SetResetToken stores a reset token and its expiry. Other columns are left alone.
func (s *UserStore) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	return s.exec(ctx, "USER_RESET_TOKEN_FAILED", id, `
		UPDATE users
		SET password_reset_token = $2,
		    password_reset_token_expires_at = $3,
		    updated_at = $4
		WHERE id = $1
	`, id.String(), token, expiresAt, at)
}

// SetPassword replaces the password hash and clears the reset token in one statement.
func (s *UserStore) SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	return s.exec(ctx, "USER_PASSWORD_UPDATE_FAILED", id, `
		UPDATE users
		SET password_hash = $2,
		    password_reset_token = NULL,
		    password_reset_token_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id.String(), hash, at)
}

// UpdateProfile sets full_name and employee_id; a nil argument keeps the stored value.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, employeeID *string, at time.Time) error {
	return s.exec(ctx, "USER_PROFILE_UPDATE_FAILED", id, `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
		    employee_id = COALESCE($3, employee_id),
		    updated_at = $4
		WHERE id = $1
	`, id.String(), fullName, employeeID, at)
}

// exec runs a single-row UPDATE and reports a missing row as auth.ErrNotFound.
func (s *UserStore) exec(ctx context.Context, code string, id uuid.UUID, query string, args ...any) error {
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return oops.Code(code).With("id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearExpiredResetTokens nulls every reset token whose expiry is not after now.
func (s *UserStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE users
		SET password_reset_token = NULL,
		    password_reset_token_expires_at = NULL,
		    updated_at = $1
		WHERE password_reset_token_expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_SWEEP_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// WithinTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *UserStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.CredentialStore) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, oops.Code("TX_ROLLBACK_FAILED").Wrap(rbErr))
			}
		}
	}()

	if err = fn(ctx, &UserStore{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return wrapWriteError(err, "TX_COMMIT_FAILED", "commit", "")
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, field, value, query string, args ...any) (*auth.User, error) {
	user, err := scanUser(s.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With(field, value).Wrap(err)
	}

	roleIDs, err := s.roleIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.RoleIDs = roleIDs
	return user, nil
}

func (s *UserStore) roleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.q.Query(ctx, `
		SELECT role_id::text FROM user_roles WHERE user_id = $1 ORDER BY role_id
	`, userID.String())
	if err != nil {
		return nil, oops.Code("USER_ROLES_QUERY_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, oops.Code("USER_ROLES_SCAN_FAILED").Wrap(err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, oops.Code("USER_ROLES_SCAN_FAILED").With("role_id", raw).Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_ROLES_QUERY_FAILED").Wrap(err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u   auth.User
		id  string
		tok *string
		exp *time.Time
	)
	if err := row.Scan(
		&id, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.EmployeeID, &u.Enabled,
		&tok, &exp, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").With("id", id).Wrap(err)
	}
	u.ID = parsed
	u.ResetToken = tok
	u.ResetTokenExpiresAt = exp
	return &u, nil
}

// wrapWriteError maps unique violations to auth.ErrDuplicate.
func wrapWriteError(err error, code, operation, username string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("USER_DUPLICATE").
			With("constraint", pgErr.ConstraintName).
			With("username", username).
			Wrap(auth.ErrDuplicate)
	}
	return oops.Code(code).With("operation", operation).With("username", username).Wrap(err)
}
