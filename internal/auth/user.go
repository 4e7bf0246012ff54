package auth

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role represents user authorization levels.
type Role string

const (
	// RoleAdmin manages users and everything else.
	RoleAdmin Role = "admin"
	// RoleOperator edits peering objects and runs deployments.
	RoleOperator Role = "operator"
	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
)

// ValidRoles contains all valid role values.
var ValidRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// CanWrite reports whether the role may modify objects.
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}

// User is a local account.
type User struct {
	ID           string     `json:"id" example:"3f6c2b7e-8e1a-4c8b-9d2f-0a1b2c3d4e5f"`
	Username     string     `json:"username" example:"noc"`
	Email        string     `json:"email" example:"noc@example.net"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role" example:"operator"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
	Disabled     bool       `json:"disabled"`
}

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks that a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidInput)
	}
	return nil
}
