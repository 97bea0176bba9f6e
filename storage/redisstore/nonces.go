package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/pkg/errors"
)

// NonceStore keeps replay nonces as keys that redis expires on its own.
type NonceStore struct {
	store *Store
}

var _ replay.NonceStore = (*NonceStore)(nil)

// Add issues SET NX PX, so exactly one caller creates the entry.
func (n *NonceStore) Add(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	added, err := n.store.client.SetNX(ctx, n.store.key("nonce", key), 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "[redisstore] add nonce")
	}
	return added, nil
}
