package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type ClientRepo struct {
	store *Store
}

var _ clients.Repo = (*ClientRepo)(nil)

func (r *ClientRepo) clientKey(clientID, redirectURI string) string {
	return r.store.key("client", clients.Identifier(clientID, redirectURI))
}

func (r *ClientRepo) idsKey(clientID string) string {
	return r.store.key("client-ids", clientID)
}

func (r *ClientRepo) Get(ctx context.Context, clientID, redirectURI string) (*clients.Client, error) {
	var client clients.Client
	found, err := r.store.getJSON(ctx, r.clientKey(clientID, redirectURI), &client)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] get client %s", clientID)
	}
	if !found {
		return nil, clients.ErrNotFound
	}
	return &client, nil
}

func (r *ClientRepo) ListByClientID(ctx context.Context, clientID string) ([]*clients.Client, error) {
	identifiers, err := r.store.client.SMembers(ctx, r.idsKey(clientID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] list client %s", clientID)
	}
	keys := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		keys = append(keys, r.store.key("client", id))
	}
	list, err := mgetJSON[clients.Client](ctx, r.store, keys)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] list client %s", clientID)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RedirectURI < list[j].RedirectURI })
	return list, nil
}

func (r *ClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	data, err := json.Marshal(client)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode client %s", client.ClientID)
	}
	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.clientKey(client.ClientID, client.RedirectURI), data, 0)
		pipe.SAdd(ctx, r.idsKey(client.ClientID), client.GetIdentifier())
		return nil
	})
	return errors.Wrapf(err, "[redisstore] save client %s", client.ClientID)
}

func (r *ClientRepo) Delete(ctx context.Context, clientID, redirectURI string) error {
	var del *redis.IntCmd
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.clientKey(clientID, redirectURI))
		pipe.SRem(ctx, r.idsKey(clientID), clients.Identifier(clientID, redirectURI))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "[redisstore] delete client %s", clientID)
	}
	if del.Val() == 0 {
		return clients.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) UpdateLastUsed(ctx context.Context, clientID, redirectURI string, at time.Time) error {
	client, err := r.Get(ctx, clientID, redirectURI)
	if err != nil {
		return err
	}
	client.LastUsed = at
	data, err := json.Marshal(client)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode client %s", clientID)
	}
	// SetXX so a concurrent Delete is not undone.
	updated, err := r.store.client.SetXX(ctx, r.clientKey(clientID, redirectURI), data, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "[redisstore] touch client %s", clientID)
	}
	if !updated {
		return clients.ErrNotFound
	}
	return nil
}
