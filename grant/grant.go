// Package grant composes the credential authenticators and the token manager
// into the OAuth2 grant flows.
package grant

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// GrantType is the grant_type parameter of a token request.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges a code issued by Authorize.
	AuthorizationCodeGrant GrantType = "authorization_code"
	// PasswordGrant trades user credentials presented by a trusted client.
	PasswordGrant GrantType = "password"
	// ClientCredentialsGrant issues a token to the client itself, with no user.
	ClientCredentialsGrant GrantType = "client_credentials"
	// RefreshTokenGrant redeems a refresh token and rotates it.
	RefreshTokenGrant GrantType = "refresh_token"
)

var (
	ErrInvalidClient        = errors.New("invalid client")
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrInvalidScope         = errors.New("invalid scope")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
)

// TokenType is the token_type of every issued access token.
const TokenType = "Bearer"

// Lifetimes are the ttls applied to each issued artifact.
type Lifetimes struct {
	AuthorizationCode time.Duration
	AccessToken       time.Duration
	RefreshToken      time.Duration
}

func DefaultLifetimes() Lifetimes {
	return Lifetimes{
		AuthorizationCode: 5 * time.Minute,
		AccessToken:       time.Hour,
		RefreshToken:      7 * 24 * time.Hour,
	}
}

// TokenRequest carries the token endpoint parameters once the HTTP layer has
// authenticated the calling client.
type TokenRequest struct {
	GrantType    GrantType
	RedirectURI  string
	Code         string // authorization_code only
	Username     string // password only
	Password     string // password only
	RefreshToken string // refresh_token only
	Scope        []string
}

// ParseScope splits a space delimited scope parameter.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}
