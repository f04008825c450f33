// Package users serves the authenticated user's own profile.
// This file, `dto.go`, defines the request and response bodies of the `/users/me` routes.
// Like DTOs in Nest.js, they are the only shapes that cross the HTTP boundary; the
// stored auth.User (with its password hash and reset token) never does.
package users

import (
	"time"

	"github.com/google/uuid"
)

// ProfileResponse is the public view of the current user.
// @Description Profile of the authenticated user
type ProfileResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	EmployeeID string    `json:"employeeId"`
	Enabled    bool      `json:"enabled"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UpdateProfileRequest changes the descriptive profile fields.
// Pointers distinguish "not sent" from "sent"; username, email and roles are not editable here.
type UpdateProfileRequest struct {
	FullName   *string `json:"fullName,omitempty" validate:"omitempty,max=150"`
	EmployeeID *string `json:"employeeId,omitempty" validate:"omitempty,max=50"`
}
