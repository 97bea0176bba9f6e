// Package docstore implements the repository contracts on Google Cloud
// Datastore. Each token kind, clients, users and API keys are separate
// entity kinds in one namespace.
package docstore

import (
	"context"

	"cloud.google.com/go/datastore"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
)

type Store struct {
	client    *datastore.Client
	namespace string
}

// New wraps an existing client.
func New(client *datastore.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

// Open connects to the project. DATASTORE_EMULATOR_HOST is honoured by the
// client library.
func Open(ctx context.Context, projectID, namespace string) (*Store, error) {
	if projectID == "" {
		return nil, errors.New("[docstore.Open] project id is required")
	}
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "[docstore.Open] project %s", projectID)
	}
	return New(client, namespace), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Tokens() token.Repos {
	return token.Repos{
		AuthorizationCodes: s.TokenRepo(token.KindAuthorizationCode),
		AccessTokens:       s.TokenRepo(token.KindAccessToken),
		RefreshTokens:      s.TokenRepo(token.KindRefreshToken),
	}
}

func (s *Store) TokenRepo(kind token.Kind) *TokenRepo {
	return &TokenRepo{store: s, kind: kind, entityKind: tokenKinds[kind]}
}

func (s *Store) Clients() *ClientRepo {
	return &ClientRepo{store: s}
}

// Users serves both users.Repo and users.APIKeyRepo.
func (s *Store) Users() *UserRepo {
	return &UserRepo{store: s}
}

func (s *Store) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Store) query(kind string) *datastore.Query {
	query := datastore.NewQuery(kind)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}
	return query
}

// deleteIfPresent deletes key inside a transaction and reports whether this
// call removed it.
func (s *Store) deleteIfPresent(ctx context.Context, key *datastore.Key, dst any) (bool, error) {
	deleted := false
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		deleted = false
		if err := tx.Get(key, dst); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil
			}
			return err
		}
		deleted = true
		return tx.Delete(key)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// update applies mutate to the entity at key inside a transaction. It reports
// false when the entity does not exist.
func update[T any](ctx context.Context, s *Store, key *datastore.Key, mutate func(*T)) (bool, error) {
	found := false
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		found = false
		entity := new(T)
		if err := tx.Get(key, entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil
			}
			return err
		}
		found = true
		mutate(entity)
		_, err := tx.Put(key, entity)
		return err
	})
	return found, err
}

// Ping runs a keys-only query, which fails when the service is unreachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.GetAll(ctx, s.query(KindClient).KeysOnly().Limit(1), nil)
	return err
}
