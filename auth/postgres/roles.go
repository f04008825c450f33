package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/user/ficticia-go/auth"
)

// RoleStore implements auth.RoleStore.
type RoleStore struct {
	q Querier
}

var _ auth.RoleStore = (*RoleStore)(nil)

// NewRoleStore creates a RoleStore on q.
func NewRoleStore(q Querier) *RoleStore {
	return &RoleStore{q: q}
}

// FindByName retrieves a role by its exact name.
func (s *RoleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	var id string
	role := auth.Role{Name: name}
	err := s.q.QueryRow(ctx, `SELECT id::text, name FROM roles WHERE name = $1`, name).Scan(&id, &role.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_NOT_FOUND").With("name", name).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").With("name", name).Wrap(err)
	}
	if role.ID, err = uuid.Parse(id); err != nil {
		return nil, oops.Code("ROLE_SCAN_FAILED").With("id", id).Wrap(err)
	}
	return &role, nil
}

// FindByIDs returns the roles among ids ordered by name. Unknown ids are skipped.
func (s *RoleStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]auth.Role, error) {
	if len(ids) == 0 {
		return []auth.Role{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	rows, err := s.q.Query(ctx, `
		SELECT id::text, name FROM roles WHERE id = ANY($1::uuid[]) ORDER BY name
	`, raw)
	if err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").Wrap(err)
	}
	defer rows.Close()

	roles := make([]auth.Role, 0, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, oops.Code("ROLE_SCAN_FAILED").Wrap(err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, oops.Code("ROLE_SCAN_FAILED").With("id", id).Wrap(err)
		}
		roles = append(roles, auth.Role{ID: parsed, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").Wrap(err)
	}
	return roles, nil
}

// Create inserts role.
func (s *RoleStore) Create(ctx context.Context, role *auth.Role) error {
	_, err := s.q.Exec(ctx, `INSERT INTO roles (id, name) VALUES ($1, $2)`, role.ID.String(), role.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ROLE_DUPLICATE").With("name", role.Name).Wrap(auth.ErrDuplicate)
		}
		return oops.Code("ROLE_CREATE_FAILED").With("name", role.Name).Wrap(err)
	}
	return nil
}
