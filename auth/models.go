// Package auth, as previously noted, handles authentication.
// This file, `models.go`, defines the entities of the authentication domain:
// users and the flat set of named roles they can hold.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role names provisioned at startup.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// User represents an account in the system.
// This struct is analogous to an "Entity" in ORM terms (like TypeORM in Nest.js).
// Username and Email are stored lower-cased, and PasswordHash never holds plaintext.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	FullName     string      `json:"fullName"`
	EmployeeID   string      `json:"employeeId"`
	Enabled      bool        `json:"enabled"`
	RoleIDs      []uuid.UUID `json:"-"`
	// ResetToken and ResetTokenExpiresAt are set and cleared together.
	ResetToken          *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// HasActiveResetToken reports whether a reset token is present and unexpired at now.
func (u *User) HasActiveResetToken(now time.Time) bool {
	return u.ResetToken != nil && u.ResetTokenExpiresAt != nil && now.Before(*u.ResetTokenExpiresAt)
}

// ClearResetToken removes the reset token and its expiry.
func (u *User) ClearResetToken() {
	u.ResetToken = nil
	u.ResetTokenExpiresAt = nil
}

// Clone returns a deep copy so stores can hand out records without sharing slices or pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.RoleIDs != nil {
		c.RoleIDs = append([]uuid.UUID(nil), u.RoleIDs...)
	}
	if u.ResetToken != nil {
		tok := *u.ResetToken
		c.ResetToken = &tok
	}
	if u.ResetTokenExpiresAt != nil {
		exp := *u.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &exp
	}
	return &c
}

// Role is a named authority such as ROLE_ADMIN.
type Role struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
