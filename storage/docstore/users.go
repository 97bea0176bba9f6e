package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

type UserRepo struct {
	store *Store
}

var (
	_ users.Repo       = (*UserRepo)(nil)
	_ users.APIKeyRepo = (*UserRepo)(nil)
)

func (r *UserRepo) userKey(userID string) *datastore.Key {
	return r.store.namespacedKey(KindUser, userID)
}

func (r *UserRepo) apiKeyKey(userID, name string) *datastore.Key {
	return r.store.namespacedKey(KindAPIKey, users.APIKeyIdentifier(userID, name))
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*users.User, error) {
	var entity UserEntity
	if err := r.store.client.Get(ctx, r.userKey(userID), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrapf(err, "[docstore] get user %s", userID)
	}
	return entity.toUser(), nil
}

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	key := r.userKey(user.UserID)
	if _, err := r.store.client.Put(ctx, key, userToEntity(user, key)); err != nil {
		return errors.Wrapf(err, "[docstore] save user %s", user.UserID)
	}
	return nil
}

// Delete removes the user and then its API keys.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	deleted, err := r.store.deleteIfPresent(ctx, r.userKey(userID), &UserEntity{})
	if err != nil {
		return errors.Wrapf(err, "[docstore] delete user %s", userID)
	}
	if !deleted {
		return users.ErrNotFound
	}

	query := r.store.query(KindAPIKey).FilterField("user_id", "=", userID).KeysOnly()
	keys, err := r.store.client.GetAll(ctx, query, nil)
	if err != nil {
		return errors.Wrapf(err, "[docstore] api keys of %s", userID)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.client.DeleteMulti(ctx, keys); err != nil {
		return errors.Wrapf(err, "[docstore] delete api keys of %s", userID)
	}
	return nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	found, err := update(ctx, r.store, r.userKey(userID), func(e *UserEntity) { e.LastLogin = at })
	if err != nil {
		return errors.Wrapf(err, "[docstore] touch user %s", userID)
	}
	if !found {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) ListAPIKeys(ctx context.Context, userID string) ([]*users.APIKey, error) {
	var entities []APIKeyEntity
	query := r.store.query(KindAPIKey).FilterField("user_id", "=", userID).Order("name")
	if _, err := r.store.client.GetAll(ctx, query, &entities); err != nil {
		return nil, errors.Wrapf(err, "[docstore] list api keys of %s", userID)
	}
	keys := make([]*users.APIKey, 0, len(entities))
	for i := range entities {
		keys = append(keys, entities[i].toAPIKey())
	}
	return keys, nil
}

func (r *UserRepo) UpsertAPIKey(ctx context.Context, key *users.APIKey) error {
	dsKey := r.apiKeyKey(key.UserID, key.Name)
	if _, err := r.store.client.Put(ctx, dsKey, apiKeyToEntity(key, dsKey)); err != nil {
		return errors.Wrapf(err, "[docstore] save api key %s", key.GetIdentifier())
	}
	return nil
}

func (r *UserRepo) DeleteAPIKey(ctx context.Context, userID, name string) error {
	deleted, err := r.store.deleteIfPresent(ctx, r.apiKeyKey(userID, name), &APIKeyEntity{})
	if err != nil {
		return errors.Wrapf(err, "[docstore] delete api key %s", name)
	}
	if !deleted {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, userID, name string, at time.Time) error {
	found, err := update(ctx, r.store, r.apiKeyKey(userID, name), func(e *APIKeyEntity) { e.LastUsed = at })
	if err != nil {
		return errors.Wrapf(err, "[docstore] touch api key %s", name)
	}
	if !found {
		return users.ErrNotFound
	}
	return nil
}
