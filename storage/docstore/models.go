package docstore

import (
	"time"

	"cloud.google.com/go/datastore"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
)

// Entity kinds.
const (
	KindAuthorizationCode = "AuthorizationCode"
	KindAccessToken       = "AccessToken"
	KindRefreshToken      = "RefreshToken"
	KindClient            = "Client"
	KindUser              = "User"
	KindAPIKey            = "UserAPIKey"
)

var tokenKinds = map[token.Kind]string{
	token.KindAuthorizationCode: KindAuthorizationCode,
	token.KindAccessToken:       KindAccessToken,
	token.KindRefreshToken:      KindRefreshToken,
}

// TokenEntity is keyed by record id.
type TokenEntity struct {
	Key         *datastore.Key `datastore:"__key__"`
	ClientID    string         `datastore:"client_id"`
	Subject     string         `datastore:"subject"`
	RedirectURI string         `datastore:"redirect_uri"`
	Scope       []string       `datastore:"scope,noindex"`
	Hash        string         `datastore:"hash,noindex"`
	Ticket      string         `datastore:"ticket,noindex"`
	CreatedAt   time.Time      `datastore:"created_at"`
	ValidTo     time.Time      `datastore:"valid_to"`
}

func (e *TokenEntity) toRecord(kind token.Kind) *token.Record {
	return &token.Record{
		ID:          e.Key.Name,
		Kind:        kind,
		ClientID:    e.ClientID,
		Subject:     e.Subject,
		RedirectURI: e.RedirectURI,
		Scope:       e.Scope,
		Hash:        e.Hash,
		Ticket:      e.Ticket,
		CreatedAt:   e.CreatedAt,
		ValidTo:     e.ValidTo,
	}
}

func recordToEntity(r *token.Record, key *datastore.Key) *TokenEntity {
	return &TokenEntity{
		Key:         key,
		ClientID:    r.ClientID,
		Subject:     r.Subject,
		RedirectURI: r.RedirectURI,
		Scope:       r.Scope,
		Hash:        r.Hash,
		Ticket:      r.Ticket,
		CreatedAt:   r.CreatedAt,
		ValidTo:     r.ValidTo,
	}
}

// ClientEntity is keyed by "clientId|redirectUri".
type ClientEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	ClientID     string         `datastore:"client_id"`
	RedirectURI  string         `datastore:"redirect_uri"`
	Description  string         `datastore:"description,noindex"`
	ClientSecret string         `datastore:"client_secret,noindex"`
	PublicKey    string         `datastore:"public_key,noindex"`
	Scopes       []string       `datastore:"scopes,noindex"`
	Enabled      bool           `datastore:"enabled,noindex"`
	LastUsed     time.Time      `datastore:"last_used,noindex"`
}

func (e *ClientEntity) toClient() *clients.Client {
	return &clients.Client{
		ClientID:     e.ClientID,
		RedirectURI:  e.RedirectURI,
		Description:  e.Description,
		ClientSecret: e.ClientSecret,
		PublicKey:    e.PublicKey,
		Scopes:       e.Scopes,
		Enabled:      e.Enabled,
		LastUsed:     e.LastUsed,
	}
}

func clientToEntity(c *clients.Client, key *datastore.Key) *ClientEntity {
	return &ClientEntity{
		Key:          key,
		ClientID:     c.ClientID,
		RedirectURI:  c.RedirectURI,
		Description:  c.Description,
		ClientSecret: c.ClientSecret,
		PublicKey:    c.PublicKey,
		Scopes:       c.Scopes,
		Enabled:      c.Enabled,
		LastUsed:     c.LastUsed,
	}
}

// UserEntity is keyed by user id.
type UserEntity struct {
	Key        *datastore.Key `datastore:"__key__"`
	Email      string         `datastore:"email"`
	Password   string         `datastore:"password,noindex"`
	FirstName  string         `datastore:"first_name,noindex"`
	LastName   string         `datastore:"last_name,noindex"`
	Roles      []string       `datastore:"roles,noindex"`
	Enabled    bool           `datastore:"enabled,noindex"`
	DateJoined time.Time      `datastore:"date_joined,noindex"`
	LastLogin  time.Time      `datastore:"last_login,noindex"`
}

func (e *UserEntity) toUser() *users.User {
	return &users.User{
		UserID:     e.Key.Name,
		Email:      e.Email,
		Password:   e.Password,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Roles:      e.Roles,
		Enabled:    e.Enabled,
		DateJoined: e.DateJoined,
		LastLogin:  e.LastLogin,
	}
}

func userToEntity(u *users.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:        key,
		Email:      u.Email,
		Password:   u.Password,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Roles:      u.Roles,
		Enabled:    u.Enabled,
		DateJoined: u.DateJoined,
		LastLogin:  u.LastLogin,
	}
}

// APIKeyEntity is keyed by "userId|name".
type APIKeyEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	Name      string         `datastore:"name"`
	APIKey    string         `datastore:"api_key,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
	LastUsed  time.Time      `datastore:"last_used,noindex"`
}

func (e *APIKeyEntity) toAPIKey() *users.APIKey {
	return &users.APIKey{
		UserID:    e.UserID,
		Name:      e.Name,
		APIKey:    e.APIKey,
		CreatedAt: e.CreatedAt,
		LastUsed:  e.LastUsed,
	}
}

func apiKeyToEntity(k *users.APIKey, key *datastore.Key) *APIKeyEntity {
	return &APIKeyEntity{
		Key:       key,
		UserID:    k.UserID,
		Name:      k.Name,
		APIKey:    k.APIKey,
		CreatedAt: k.CreatedAt,
		LastUsed:  k.LastUsed,
	}
}
