package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a role granted to a principal
type RoleType string

const (
	// RoleUser is implied for every authenticated principal, even when
	// the stored role set is empty.
	RoleUser RoleType = "ROLE_USER"

	// RoleAdmin is granted when the IdP releases the admin marker
	// attribute.
	RoleAdmin RoleType = "ROLE_ADMIN"
)

// User is a local principal bootstrapped from federated attributes at
// first login. Name and email may be empty when the IdP withholds the
// corresponding attributes.
type User struct {
	ID         string    `json:"id,omitempty"`          // Unique identifier for the user
	Email      string    `json:"email,omitempty"`       // User's email address
	FirstName  string    `json:"first_name,omitempty"`  // First name of the user
	LastName   string    `json:"last_name,omitempty"`   // Last name of the user
	ExternalID string    `json:"external_id,omitempty"` // Subject identifier assigned by the IdP
	Slug       string    `json:"slug,omitempty"`        // URL-safe handle, unique across users
	DateJoined time.Time `json:"date_joined,omitempty"` // When the principal was first provisioned
	LastLogin  time.Time `json:"last_login,omitempty"`  // Last successful federated login

	// Roles holds the explicitly granted roles; RoleUser is always
	// implied and never stored.
	Roles []RoleType `json:"roles,omitempty"`

	// PasswordHash is only set for locally provisioned principals - never serialize
	PasswordHash string `json:"-"`
}

// EffectiveRoles returns the explicit roles plus the implied base role,
// duplicates collapsed.
func (u *User) EffectiveRoles() []RoleType {
	seen := map[RoleType]bool{RoleUser: true}
	roles := []RoleType{RoleUser}
	for _, role := range u.Roles {
		if seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	return roles
}

// AddRole grants a role, collapsing duplicates.
func (u *User) AddRole(role RoleType) {
	for _, existing := range u.Roles {
		if existing == role {
			return
		}
	}
	u.Roles = append(u.Roles, role)
}

// IsAdmin returns true if the principal carries the admin role
func (u *User) IsAdmin() bool {
	for _, role := range u.Roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
