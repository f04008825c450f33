// Package auth provides authentication and authorization functionality
// This file, `dto.go` (Data Transfer Object), defines structures used for
// transferring data in API requests and responses related to authentication.
// The `validate` tags are checked by go-playground/validator, the Go counterpart
// of class-validator decorators on Nest.js DTOs.
package auth

import "strings"

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"Secr33t!!"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token    string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Username string   `json:"username" example:"alice"`
	Roles    []string `json:"roles" example:"ROLE_USER"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	FullName        string `json:"fullName" validate:"required,max=150" example:"Alice Liddell"`
	Username        string `json:"username" validate:"required,min=3,max=50" example:"alice"`
	Email           string `json:"email" validate:"required,email,max=255" example:"alice@example.com"`
	Password        string `json:"password" validate:"required" example:"Secr33t!!"`
	ConfirmPassword string `json:"confirmPassword" validate:"required" example:"Secr33t!!"`
	EmployeeID      string `json:"employeeId" validate:"required,max=50" example:"EMP-0042"`
}

// trimmed returns req with surrounding whitespace removed from every field that is
// stored as text. Length limits apply to what gets stored, so this runs before validation.
func (req RegisterRequest) trimmed() RegisterRequest {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	return req
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	Username string   `json:"username" example:"alice"`
	Roles    []string `json:"roles" example:"ROLE_USER"`
	Enabled  bool     `json:"enabled" example:"true"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"alice@example.com"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required" example:"9f86d081884c7d659a2feaa0c55ad015"`
	Password        string `json:"password" validate:"required" example:"N3w-Secr3t"`
	ConfirmPassword string `json:"confirmPassword" validate:"required" example:"N3w-Secr3t"`
}
