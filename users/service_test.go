package users_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/auth"
	"github.com/user/ficticia-go/auth/memory"
	"github.com/user/ficticia-go/users"
)

type fixture struct {
	users *memory.UserStore
	roles *memory.RoleStore
	svc   *users.UserService
	alice *auth.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{users: memory.NewUserStore(), roles: memory.NewRoleStore()}
	require.NoError(t, auth.EnsureRoles(ctx, f.roles, auth.RoleUser, auth.RoleAdmin))
	userRole, err := f.roles.FindByName(ctx, auth.RoleUser)
	require.NoError(t, err)
	adminRole, err := f.roles.FindByName(ctx, auth.RoleAdmin)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f.alice = &auth.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "hash",
		FullName:     "Alice Liddell",
		EmployeeID:   "EMP-1",
		Enabled:      true,
		RoleIDs:      []uuid.UUID{userRole.ID, adminRole.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.users.Create(ctx, f.alice))
	f.svc = users.NewUserService(f.users, f.roles)
	return f
}

func ptr(s string) *string { return &s }

func TestGetProfile(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.GetProfile(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "EMP-1", got.EmployeeID)
	assert.Equal(t, []string{auth.RoleAdmin, auth.RoleUser}, got.Roles)

	_, err = f.svc.GetProfile(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.UpdateProfile(ctx, f.alice.ID, &users.UpdateProfileRequest{FullName: ptr("  Alice L.  ")})
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", got.FullName)
	assert.Equal(t, "EMP-1", got.EmployeeID, "fields not sent are kept")

	stored, err := f.users.FindByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", stored.FullName)
	assert.Equal(t, "hash", stored.PasswordHash)

	tests := []struct {
		name string
		req  users.UpdateProfileRequest
	}{
		{"nothing sent", users.UpdateProfileRequest{}},
		{"blank name", users.UpdateProfileRequest{FullName: ptr("   ")}},
		{"employee id too long", users.UpdateProfileRequest{EmployeeID: ptr(strings.Repeat("x", 51))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateProfile(ctx, f.alice.ID, &tt.req)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 400, appErr.StatusCode())
		})
	}

	_, err = f.svc.UpdateProfile(ctx, uuid.New(), &users.UpdateProfileRequest{FullName: ptr("Ghost")})
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateProfile_KeepsCredentialColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.users.SetPassword(ctx, f.alice.ID, "changed-hash", at))
	require.NoError(t, f.users.SetResetToken(ctx, f.alice.ID, "tok", at.Add(time.Hour), at))

	_, err := f.svc.UpdateProfile(ctx, f.alice.ID, &users.UpdateProfileRequest{EmployeeID: ptr("EMP-2")})
	require.NoError(t, err)

	stored, err := f.users.FindByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed-hash", stored.PasswordHash)
	require.NotNil(t, stored.ResetToken)
	assert.Equal(t, "tok", *stored.ResetToken)
	assert.Equal(t, "EMP-2", stored.EmployeeID)
	assert.Equal(t, "Alice Liddell", stored.FullName)
}
