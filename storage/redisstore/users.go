package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// UserRepo stores users and their API keys. A user's key identifiers are
// indexed in a set so Delete can cascade.
type UserRepo struct {
	store *Store
}

var (
	_ users.Repo       = (*UserRepo)(nil)
	_ users.APIKeyRepo = (*UserRepo)(nil)
)

func (r *UserRepo) userKey(userID string) string {
	return r.store.key("user", userID)
}

func (r *UserRepo) apiKeyKey(identifier string) string {
	return r.store.key("apikey", identifier)
}

func (r *UserRepo) apiKeysKey(userID string) string {
	return r.store.key("apikeys", userID)
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*users.User, error) {
	var user users.User
	found, err := r.store.getJSON(ctx, r.userKey(userID), &user)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] get user %s", userID)
	}
	if !found {
		return nil, users.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode user %s", user.UserID)
	}
	if err := r.store.client.Set(ctx, r.userKey(user.UserID), data, 0).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore] save user %s", user.UserID)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	identifiers, err := r.store.client.SMembers(ctx, r.apiKeysKey(userID)).Result()
	if err != nil {
		return errors.Wrapf(err, "[redisstore] api keys of %s", userID)
	}
	var del *redis.IntCmd
	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.userKey(userID))
		for _, id := range identifiers {
			pipe.Del(ctx, r.apiKeyKey(id))
		}
		pipe.Del(ctx, r.apiKeysKey(userID))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "[redisstore] delete user %s", userID)
	}
	if del.Val() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	user, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	user.LastLogin = at
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode user %s", userID)
	}
	updated, err := r.store.client.SetXX(ctx, r.userKey(userID), data, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "[redisstore] touch user %s", userID)
	}
	if !updated {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) ListAPIKeys(ctx context.Context, userID string) ([]*users.APIKey, error) {
	identifiers, err := r.store.client.SMembers(ctx, r.apiKeysKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] list api keys of %s", userID)
	}
	keys := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		keys = append(keys, r.apiKeyKey(id))
	}
	list, err := mgetJSON[users.APIKey](ctx, r.store, keys)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] list api keys of %s", userID)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r *UserRepo) UpsertAPIKey(ctx context.Context, key *users.APIKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode api key %s", key.GetIdentifier())
	}
	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.apiKeyKey(key.GetIdentifier()), data, 0)
		pipe.SAdd(ctx, r.apiKeysKey(key.UserID), key.GetIdentifier())
		return nil
	})
	return errors.Wrapf(err, "[redisstore] save api key %s", key.GetIdentifier())
}

func (r *UserRepo) DeleteAPIKey(ctx context.Context, userID, name string) error {
	identifier := users.APIKeyIdentifier(userID, name)
	var del *redis.IntCmd
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.apiKeyKey(identifier))
		pipe.SRem(ctx, r.apiKeysKey(userID), identifier)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "[redisstore] delete api key %s", name)
	}
	if del.Val() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, userID, name string, at time.Time) error {
	identifier := users.APIKeyIdentifier(userID, name)
	var key users.APIKey
	found, err := r.store.getJSON(ctx, r.apiKeyKey(identifier), &key)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] get api key %s", name)
	}
	if !found {
		return users.ErrNotFound
	}
	key.LastUsed = at
	data, err := json.Marshal(&key)
	if err != nil {
		return errors.Wrapf(err, "[redisstore] encode api key %s", name)
	}
	updated, err := r.store.client.SetXX(ctx, r.apiKeyKey(identifier), data, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "[redisstore] touch api key %s", name)
	}
	if !updated {
		return users.ErrNotFound
	}
	return nil
}
