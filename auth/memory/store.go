// Package memory provides in-process implementations of the auth store
// contracts. They back `serve --memory` and the service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/user/ficticia-go/auth"
)

// UserStore is a map-backed auth.CredentialStore.
// Writes are serialized by txMu; WithinTx holds it for the whole callback and
// restores a snapshot when the callback fails.
type UserStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	users map[uuid.UUID]*auth.User
}

var _ auth.CredentialStore = (*UserStore)(nil)

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*auth.User)}
}

func (s *UserStore) FindByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	return s.findOne("id", id.String(), func(u *auth.User) bool { return u.ID == id })
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return s.findOne("username", username, func(u *auth.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return s.findOne("email", email, func(u *auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *UserStore) FindByResetToken(_ context.Context, token string) (*auth.User, error) {
	return s.findOne("reset_token", "<redacted>", func(u *auth.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token
	})
}

func (s *UserStore) Create(ctx context.Context, user *auth.User) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.create(ctx, user)
}

func (s *UserStore) SetResetToken(_ context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.mutate(id, setResetToken(token, expiresAt, at))
}

func (s *UserStore) SetPassword(_ context.Context, id uuid.UUID, hash string, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.mutate(id, setPassword(hash, at))
}

func (s *UserStore) UpdateProfile(_ context.Context, id uuid.UUID, fullName, employeeID *string, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.mutate(id, updateProfile(fullName, employeeID, at))
}

func (s *UserStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.clearExpired(ctx, now)
}

func (s *UserStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.CredentialStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx, &txUserStore{s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *UserStore) findOne(field, value string, match func(*auth.User) bool) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
}

func (s *UserStore) create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return oops.Code("USER_DUPLICATE").With("id", user.ID).Wrap(auth.ErrDuplicate)
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return oops.Code("USER_DUPLICATE").With("constraint", "username").Wrap(auth.ErrDuplicate)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_DUPLICATE").With("constraint", "email").Wrap(auth.ErrDuplicate)
		}
	}
	s.users[user.ID] = user.Clone()
	return nil
}

// mutate applies fn to the stored record of id. Only the fields fn touches change.
func (s *UserStore) mutate(id uuid.UUID, fn func(*auth.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	fn(u)
	return nil
}

func setResetToken(token string, expiresAt, at time.Time) func(*auth.User) {
	return func(u *auth.User) {
		u.ResetToken = &token
		u.ResetTokenExpiresAt = &expiresAt
		u.UpdatedAt = at
	}
}

func setPassword(hash string, at time.Time) func(*auth.User) {
	return func(u *auth.User) {
		u.PasswordHash = hash
		u.ClearResetToken()
		u.UpdatedAt = at
	}
}

func updateProfile(fullName, employeeID *string, at time.Time) func(*auth.User) {
	return func(u *auth.User) {
		if fullName != nil {
			u.FullName = *fullName
		}
		if employeeID != nil {
			u.EmployeeID = *employeeID
		}
		u.UpdatedAt = at
	}
}

func (s *UserStore) clearExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.users {
		if u.ResetTokenExpiresAt != nil && !now.Before(*u.ResetTokenExpiresAt) {
			u.ClearResetToken()
			u.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *UserStore) snapshot() map[uuid.UUID]*auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[uuid.UUID]*auth.User, len(s.users))
	for id, u := range s.users {
		snap[id] = u.Clone()
	}
	return snap
}

func (s *UserStore) restore(snap map[uuid.UUID]*auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap
}

// txUserStore is handed to WithinTx callbacks. txMu is already held, so its
// writes go straight to the unlocked helpers.
type txUserStore struct {
	s *UserStore
}

func (t *txUserStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return t.s.FindByID(ctx, id)
}

func (t *txUserStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return t.s.FindByUsername(ctx, username)
}

func (t *txUserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return t.s.FindByEmail(ctx, email)
}

func (t *txUserStore) FindByResetToken(ctx context.Context, token string) (*auth.User, error) {
	return t.s.FindByResetToken(ctx, token)
}

func (t *txUserStore) Create(ctx context.Context, user *auth.User) error {
	return t.s.create(ctx, user)
}

func (t *txUserStore) SetResetToken(_ context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	return t.s.mutate(id, setResetToken(token, expiresAt, at))
}

func (t *txUserStore) SetPassword(_ context.Context, id uuid.UUID, hash string, at time.Time) error {
	return t.s.mutate(id, setPassword(hash, at))
}

func (t *txUserStore) UpdateProfile(_ context.Context, id uuid.UUID, fullName, employeeID *string, at time.Time) error {
	return t.s.mutate(id, updateProfile(fullName, employeeID, at))
}

func (t *txUserStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	return t.s.clearExpired(ctx, now)
}

func (t *txUserStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.CredentialStore) error) error {
	return fn(ctx, t)
}

// RoleStore is a map-backed auth.RoleStore.
type RoleStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]auth.Role
}

var _ auth.RoleStore = (*RoleStore)(nil)

// NewRoleStore returns a store holding roles.
func NewRoleStore(roles ...auth.Role) *RoleStore {
	s := &RoleStore{roles: make(map[uuid.UUID]auth.Role, len(roles))}
	for _, r := range roles {
		s.roles[r.ID] = r
	}
	return s
}

func (s *RoleStore) FindByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, oops.Code("ROLE_NOT_FOUND").With("name", name).Wrap(auth.ErrNotFound)
}

// FindByIDs returns the roles that exist among ids; unknown ids are skipped.
func (s *RoleStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RoleStore) Create(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == role.Name {
			return oops.Code("ROLE_DUPLICATE").With("name", role.Name).Wrap(auth.ErrDuplicate)
		}
	}
	s.roles[role.ID] = *role
	return nil
}
