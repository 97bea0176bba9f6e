package token

import (
	"slices"
	"time"
)

// Kind distinguishes the three artifact types. Each kind has its own repository.
type Kind string

const (
	KindAuthorizationCode Kind = "authorization_code"
	KindAccessToken       Kind = "access_token"
	KindRefreshToken      Kind = "refresh_token"
)

// Kinds lists every artifact kind.
var Kinds = []Kind{KindAuthorizationCode, KindAccessToken, KindRefreshToken}

// Record is the stored form of a code or token. Hash holds the hash of the
// secret handed to the caller; the secret itself is never stored. Ticket is
// the principal encrypted under the secret and is empty for refresh tokens.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ClientID    string    `json:"client_id"`
	Subject     string    `json:"subject"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       []string  `json:"scope,omitempty"`
	Hash        string    `json:"hash"`
	Ticket      string    `json:"ticket,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ValidTo     time.Time `json:"valid_to"`
}

// IsValidAt reports whether the record has not expired at now.
func (r *Record) IsValidAt(now time.Time) bool {
	return r.ValidTo.After(now)
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Scope = slices.Clone(r.Scope)
	return &clone
}
