/**
 * @description
 * Core user models for the fee-management backend: students and administrators,
 * the login identifier accepted at the API boundary, and the token records used
 * for e-mail verification and password resets.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User maps to the `users` table.
type User struct {
	ID            uuid.UUID  `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	MatricNumber  *string    `json:"matric_number,omitempty"`
	PasswordHash  string     `json:"-"`
	Role          string     `json:"role"`
	Department    *string    `json:"department,omitempty"`
	FacultyID     *uuid.UUID `json:"faculty_id,omitempty"`
	Level         *int       `json:"level,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IdentifierKind tells the login flow which column an identifier refers to.
type IdentifierKind string

const (
	IdentifierEmail  IdentifierKind = "email"
	IdentifierMatric IdentifierKind = "matric"
)

// LoginIdentifier is the tagged identifier sent by clients at login.
// The kind is decided by the caller; nothing downstream guesses it.
type LoginIdentifier struct {
	Kind  IdentifierKind `json:"kind" validate:"required,oneof=email matric"`
	Value string         `json:"value" validate:"required"`
}

// Normalize returns the identifier with its value in canonical form.
func (id LoginIdentifier) Normalize() (LoginIdentifier, error) {
	value := strings.TrimSpace(id.Value)
	if value == "" {
		return id, fmt.Errorf("identifier value is required")
	}
	switch id.Kind {
	case IdentifierEmail:
		return LoginIdentifier{Kind: id.Kind, Value: strings.ToLower(value)}, nil
	case IdentifierMatric:
		return LoginIdentifier{Kind: id.Kind, Value: strings.ToUpper(value)}, nil
	default:
		return id, fmt.Errorf("unsupported identifier kind %q", id.Kind)
	}
}

// SignupInput carries a student registration request.
type SignupInput struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email"`
	MatricNumber string `json:"matric_number" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Department   string `json:"department" validate:"omitempty,max=150"`
	Level        *int   `json:"level" validate:"omitempty,oneof=100 200 300 400 500 600 700"`
	Phone        string `json:"phone" validate:"omitempty,max=20"`
}

// AdminSignupInput carries an administrator registration request.
type AdminSignupInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// LoginInput carries a login request.
type LoginInput struct {
	Identifier LoginIdentifier `json:"identifier" validate:"required"`
	Password   string          `json:"password" validate:"required"`
}

// ProfileUpdate holds the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName  *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
	Department *string `json:"department" validate:"omitempty,max=150"`
	Level      *int    `json:"level" validate:"omitempty,oneof=100 200 300 400 500 600 700"`
}

// AuthTokens is the token pair returned after authentication.
type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User   *User      `json:"user"`
	Tokens AuthTokens `json:"tokens"`
}

// OneTimeToken is a hashed single-use token (password reset or e-mail verification).
type OneTimeToken struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the token can still be redeemed at now.
func (t *OneTimeToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// UserListOptions filters the admin user listing.
type UserListOptions struct {
	Page   int
	Limit  int
	Search string
	Role   string
}
