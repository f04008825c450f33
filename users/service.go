package users

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/auth"
)

// UserService reads and edits profiles through the auth stores.
type UserService struct {
	users auth.CredentialStore
	roles auth.RoleStore
	now   func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(users auth.CredentialStore, roles auth.RoleStore) *UserService {
	return &UserService{users: users, roles: roles, now: time.Now}
}

// GetProfile returns the profile of userID.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}
	return s.toProfile(ctx, user)
}

// UpdateProfile applies the fields present in req and returns the updated profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*ProfileResponse, error) {
	if req.FullName == nil && req.EmployeeID == nil {
		return nil, apperror.NewBadRequestError("no fields provided for update", nil)
	}
	if err := trimRequired("fullName", req.FullName); err != nil {
		return nil, err
	}
	if err := trimRequired("employeeId", req.EmployeeID); err != nil {
		return nil, err
	}
	if err := auth.ValidateRequest(req); err != nil {
		return nil, err
	}

	var updated *auth.User
	err := s.users.WithinTx(ctx, func(ctx context.Context, tx auth.CredentialStore) error {
		if err := tx.UpdateProfile(ctx, userID, req.FullName, req.EmployeeID, s.now().UTC()); err != nil {
			return lookupError(err)
		}
		user, err := tx.FindByID(ctx, userID)
		if err != nil {
			return lookupError(err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toProfile(ctx, updated)
}

func (s *UserService) toProfile(ctx context.Context, user *auth.User) (*ProfileResponse, error) {
	roles, err := s.roles.FindByIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load roles", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	slices.Sort(names)

	return &ProfileResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		EmployeeID: user.EmployeeID,
		Enabled:    user.Enabled,
		Roles:      names,
		CreatedAt:  user.CreatedAt,
	}, nil
}

// trimRequired trims a sent field in place; a sent field may not be blank.
func trimRequired(field string, v *string) error {
	if v == nil {
		return nil
	}
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return apperror.NewValidationError(field+" must not be blank", nil)
	}
	return nil
}

func lookupError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, auth.ErrNotFound) {
		return apperror.NewNotFoundError("user not found", err)
	}
	return apperror.NewDatabaseError("failed to access user", err)
}
