package gormstore

import (
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
)

// Timestamps are stored as unix nanoseconds so range predicates compare
// integers on every dialect. Zero times are stored as 0.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// tokenRow is the column set shared by the three token tables.
type tokenRow struct {
	ID          string   `gorm:"primaryKey;size:64"`
	ClientID    string   `gorm:"size:255;index"`
	Subject     string   `gorm:"size:255"`
	RedirectURI string   `gorm:"size:1024;index"`
	Scope       []string `gorm:"serializer:json"`
	Hash        string   `gorm:"size:512"`
	Ticket      string   `gorm:"type:text"`
	CreatedNs   int64    `gorm:"column:created_ns"`
	ValidToNs   int64    `gorm:"column:valid_to_ns;index"`
}

// The per-kind types exist so that AutoMigrate derives distinct index names.
type authorizationCodeRow struct{ tokenRow }

func (authorizationCodeRow) TableName() string { return "authorization_codes" }

type accessTokenRow struct{ tokenRow }

func (accessTokenRow) TableName() string { return "access_tokens" }

type refreshTokenRow struct{ tokenRow }

func (refreshTokenRow) TableName() string { return "refresh_tokens" }

var tokenTables = map[token.Kind]string{
	token.KindAuthorizationCode: authorizationCodeRow{}.TableName(),
	token.KindAccessToken:       accessTokenRow{}.TableName(),
	token.KindRefreshToken:      refreshTokenRow{}.TableName(),
}

func tokenToRow(r *token.Record) *tokenRow {
	return &tokenRow{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Subject:     r.Subject,
		RedirectURI: r.RedirectURI,
		Scope:       r.Scope,
		Hash:        r.Hash,
		Ticket:      r.Ticket,
		CreatedNs:   toNanos(r.CreatedAt),
		ValidToNs:   toNanos(r.ValidTo),
	}
}

func (m *tokenRow) toRecord(kind token.Kind) *token.Record {
	return &token.Record{
		ID:          m.ID,
		Kind:        kind,
		ClientID:    m.ClientID,
		Subject:     m.Subject,
		RedirectURI: m.RedirectURI,
		Scope:       m.Scope,
		Hash:        m.Hash,
		Ticket:      m.Ticket,
		CreatedAt:   fromNanos(m.CreatedNs),
		ValidTo:     fromNanos(m.ValidToNs),
	}
}

type clientRow struct {
	Identifier   string   `gorm:"primaryKey;size:1280"`
	ClientID     string   `gorm:"size:255;index"`
	RedirectURI  string   `gorm:"size:1024"`
	Description  string   `gorm:"size:1024"`
	ClientSecret string   `gorm:"size:512"`
	PublicKey    string   `gorm:"type:text"`
	Scopes       []string `gorm:"serializer:json"`
	Enabled      bool     `gorm:"not null"`
	LastUsedNs   int64    `gorm:"column:last_used_ns"`
}

func (clientRow) TableName() string { return "clients" }

func clientToRow(c *clients.Client) *clientRow {
	return &clientRow{
		Identifier:   c.GetIdentifier(),
		ClientID:     c.ClientID,
		RedirectURI:  c.RedirectURI,
		Description:  c.Description,
		ClientSecret: c.ClientSecret,
		PublicKey:    c.PublicKey,
		Scopes:       c.Scopes,
		Enabled:      c.Enabled,
		LastUsedNs:   toNanos(c.LastUsed),
	}
}

func (m *clientRow) toClient() *clients.Client {
	return &clients.Client{
		ClientID:     m.ClientID,
		RedirectURI:  m.RedirectURI,
		Description:  m.Description,
		ClientSecret: m.ClientSecret,
		PublicKey:    m.PublicKey,
		Scopes:       m.Scopes,
		Enabled:      m.Enabled,
		LastUsed:     fromNanos(m.LastUsedNs),
	}
}

type userRow struct {
	UserID       string   `gorm:"primaryKey;size:255"`
	Email        string   `gorm:"size:320"`
	Password     string   `gorm:"size:512"`
	FirstName    string   `gorm:"size:255"`
	LastName     string   `gorm:"size:255"`
	Roles        []string `gorm:"serializer:json"`
	Enabled      bool     `gorm:"not null"`
	DateJoinedNs int64    `gorm:"column:date_joined_ns"`
	LastLoginNs  int64    `gorm:"column:last_login_ns"`
}

func (userRow) TableName() string { return "users" }

func userToRow(u *users.User) *userRow {
	return &userRow{
		UserID:       u.UserID,
		Email:        u.Email,
		Password:     u.Password,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Roles:        u.Roles,
		Enabled:      u.Enabled,
		DateJoinedNs: toNanos(u.DateJoined),
		LastLoginNs:  toNanos(u.LastLogin),
	}
}

func (m *userRow) toUser() *users.User {
	return &users.User{
		UserID:     m.UserID,
		Email:      m.Email,
		Password:   m.Password,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Roles:      m.Roles,
		Enabled:    m.Enabled,
		DateJoined: fromNanos(m.DateJoinedNs),
		LastLogin:  fromNanos(m.LastLoginNs),
	}
}

type apiKeyRow struct {
	Identifier string `gorm:"primaryKey;size:512"`
	UserID     string `gorm:"size:255;index"`
	Name       string `gorm:"size:255"`
	APIKey     string `gorm:"column:api_key"`
	CreatedNs  int64  `gorm:"column:created_ns"`
	LastUsedNs int64  `gorm:"column:last_used_ns"`
}

func (apiKeyRow) TableName() string { return "user_api_keys" }

func apiKeyToRow(k *users.APIKey) *apiKeyRow {
	return &apiKeyRow{
		Identifier: k.GetIdentifier(),
		UserID:     k.UserID,
		Name:       k.Name,
		APIKey:     k.APIKey,
		CreatedNs:  toNanos(k.CreatedAt),
		LastUsedNs: toNanos(k.LastUsed),
	}
}

func (m *apiKeyRow) toAPIKey() *users.APIKey {
	return &users.APIKey{
		UserID:    m.UserID,
		Name:      m.Name,
		APIKey:    m.APIKey,
		CreatedAt: fromNanos(m.CreatedNs),
		LastUsed:  fromNanos(m.LastUsedNs),
	}
}
