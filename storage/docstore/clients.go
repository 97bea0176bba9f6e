package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/pkg/errors"
)

type ClientRepo struct {
	store *Store
}

var _ clients.Repo = (*ClientRepo)(nil)

func (r *ClientRepo) key(clientID, redirectURI string) *datastore.Key {
	return r.store.namespacedKey(KindClient, clients.Identifier(clientID, redirectURI))
}

func (r *ClientRepo) Get(ctx context.Context, clientID, redirectURI string) (*clients.Client, error) {
	var entity ClientEntity
	if err := r.store.client.Get(ctx, r.key(clientID, redirectURI), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, clients.ErrNotFound
		}
		return nil, errors.Wrapf(err, "[docstore] get client %s", clientID)
	}
	return entity.toClient(), nil
}

func (r *ClientRepo) ListByClientID(ctx context.Context, clientID string) ([]*clients.Client, error) {
	var entities []ClientEntity
	query := r.store.query(KindClient).FilterField("client_id", "=", clientID).Order("redirect_uri")
	if _, err := r.store.client.GetAll(ctx, query, &entities); err != nil {
		return nil, errors.Wrapf(err, "[docstore] list client %s", clientID)
	}
	list := make([]*clients.Client, 0, len(entities))
	for i := range entities {
		list = append(list, entities[i].toClient())
	}
	return list, nil
}

func (r *ClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	key := r.key(client.ClientID, client.RedirectURI)
	if _, err := r.store.client.Put(ctx, key, clientToEntity(client, key)); err != nil {
		return errors.Wrapf(err, "[docstore] save client %s", client.ClientID)
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, clientID, redirectURI string) error {
	deleted, err := r.store.deleteIfPresent(ctx, r.key(clientID, redirectURI), &ClientEntity{})
	if err != nil {
		return errors.Wrapf(err, "[docstore] delete client %s", clientID)
	}
	if !deleted {
		return clients.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) UpdateLastUsed(ctx context.Context, clientID, redirectURI string, at time.Time) error {
	found, err := update(ctx, r.store, r.key(clientID, redirectURI), func(e *ClientEntity) { e.LastUsed = at })
	if err != nil {
		return errors.Wrapf(err, "[docstore] touch client %s", clientID)
	}
	if !found {
		return clients.ErrNotFound
	}
	return nil
}
