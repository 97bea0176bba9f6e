package clients

import (
	"context"
	"time"
)

// Repo stores clients keyed by GetIdentifier. Get and UpdateLastUsed return
// ErrNotFound when no record matches.
type Repo interface {
	Get(ctx context.Context, clientID, redirectURI string) (*Client, error)
	ListByClientID(ctx context.Context, clientID string) ([]*Client, error)
	Upsert(ctx context.Context, client *Client) error
	Delete(ctx context.Context, clientID, redirectURI string) error
	UpdateLastUsed(ctx context.Context, clientID, redirectURI string, at time.Time) error
}
