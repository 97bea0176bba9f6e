package clients

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrNotFound     = errors.New("client not found")
	ErrInvalidScope = errors.New("invalid scope")
)

// Client is one registered (client id, redirect uri) pair. A client id with
// several redirect uris is stored as several records.
type Client struct {
	ClientID     string    `json:"client_id"`
	RedirectURI  string    `json:"redirect_uri"`
	Description  string    `json:"description,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"` // Hash of the secret, never the secret
	PublicKey    string    `json:"public_key,omitempty"`    // For signature authentication
	Scopes       []string  `json:"scopes,omitempty"`        // Allowed scopes for this client
	Enabled      bool      `json:"enabled"`
	LastUsed     time.Time `json:"last_used,omitempty"`
}

// GetIdentifier returns the storage key "clientId|redirectUri".
func (c *Client) GetIdentifier() string {
	return Identifier(c.ClientID, c.RedirectURI)
}

func Identifier(clientID, redirectURI string) string {
	return clientID + "|" + redirectURI
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requested []string) error {
	for _, scope := range requested {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// Clone returns a deep copy, so repositories never hand out shared records.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Scopes = slices.Clone(c.Scopes)
	return &clone
}
