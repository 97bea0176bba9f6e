package users

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-auth-engine/principal"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	UserID     string    `json:"user_id"`              // Unique identifier for the user
	Email      string    `json:"email,omitempty"`      // User's email address
	Password   string    `json:"password,omitempty"`   // Hash of the user's password
	FirstName  string    `json:"first_name,omitempty"` // First name of the user
	LastName   string    `json:"last_name,omitempty"`  // Last name of the user
	Roles      []string  `json:"roles,omitempty"`
	Enabled    bool      `json:"enabled"`
	DateJoined time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin  time.Time `json:"last_login,omitempty"`  // Last time the user logged in
}

// GetIdentifier returns the storage key, the user id.
func (u *User) GetIdentifier() string {
	return u.UserID
}

// Claims are the profile claims issued for the user.
func (u *User) Claims() []principal.Claim {
	claims := []principal.Claim{principal.NewClaim(principal.ClaimSubject, u.UserID)}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		claims = append(claims, principal.NewClaim(principal.ClaimName, name))
	}
	if u.Email != "" {
		claims = append(claims, principal.NewClaim(principal.ClaimEmail, u.Email))
	}
	for _, role := range u.Roles {
		claims = append(claims, principal.NewClaim(principal.ClaimRole, role))
	}
	return claims
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = slices.Clone(u.Roles)
	return &clone
}

// APIKey is a public key registered by a user for signature authentication.
type APIKey struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"` // Public key, base64url PKIX
	CreatedAt time.Time `json:"created_at,omitempty"`
	LastUsed  time.Time `json:"last_used,omitempty"`
}

// GetIdentifier returns the storage key "userId|name".
func (k *APIKey) GetIdentifier() string {
	return APIKeyIdentifier(k.UserID, k.Name)
}

func APIKeyIdentifier(userID, name string) string {
	return userID + "|" + name
}

func (k *APIKey) Clone() *APIKey {
	if k == nil {
		return nil
	}
	clone := *k
	return &clone
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
