package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// EnsureRoles creates any of names missing from the store. It is idempotent.
func EnsureRoles(ctx context.Context, roles RoleStore, names ...string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := roles.FindByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return oops.Code("ROLE_SEED_FAILED").With("role", name).Wrap(err)
		}
		// A concurrent instance may have created it in the meantime.
		if err := roles.Create(ctx, &Role{ID: uuid.New(), Name: name}); err != nil && !errors.Is(err, ErrDuplicate) {
			return oops.Code("ROLE_SEED_FAILED").With("role", name).Wrap(err)
		}
	}
	return nil
}

// EnsureAdmin creates an administrator holding ROLE_ADMIN and the default role
// unless username already exists. The password policy is not applied here so
// operators can bootstrap with a temporary password. It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username = normalizeIdentifier(username)
	email = normalizeIdentifier(email)
	if username == "" || email == "" || password == "" {
		return false, oops.Code("ADMIN_SEED_INVALID").Errorf("admin username, email and password are required")
	}

	created := false
	err := s.users.WithinTx(ctx, func(ctx context.Context, users CredentialStore) error {
		_, err := users.FindByUsername(ctx, username)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		roleIDs := make([]uuid.UUID, 0, 2)
		for _, name := range []string{RoleAdmin, s.cfg.DefaultRole} {
			role, err := s.roles.FindByName(ctx, name)
			if err != nil {
				return oops.Code("ADMIN_SEED_ROLE_MISSING").With("role", name).Wrap(err)
			}
			if len(roleIDs) == 0 || roleIDs[0] != role.ID {
				roleIDs = append(roleIDs, role.ID)
			}
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return oops.Code("ADMIN_SEED_HASH").Wrap(err)
		}
		now := s.now().UTC()
		if err := users.Create(ctx, &User{
			ID:           uuid.New(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FullName:     "Administrator",
			Enabled:      true,
			RoleIDs:      roleIDs,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.InfoContext(ctx, "admin user created", "username", username)
	}
	return created, nil
}
