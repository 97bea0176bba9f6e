package users

import (
	"context"
	"time"
)

// Repo stores users keyed by user id. Get, Delete and UpdateLastLogin return
// ErrNotFound for unknown ids.
type Repo interface {
	Get(ctx context.Context, userID string) (*User, error)
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, userID string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// APIKeyRepo stores API keys keyed by "userId|name".
type APIKeyRepo interface {
	ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error)
	UpsertAPIKey(ctx context.Context, key *APIKey) error
	DeleteAPIKey(ctx context.Context, userID, name string) error
	UpdateAPIKeyLastUsed(ctx context.Context, userID, name string, at time.Time) error
}
