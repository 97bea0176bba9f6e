package fakeuserrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-engine/users"
)

var (
	_ users.Repo       = (*FakeUserRepo)(nil)
	_ users.APIKeyRepo = (*FakeUserRepo)(nil)
)

// FakeUserRepo is the in-memory users.Repo and users.APIKeyRepo.
type FakeUserRepo struct {
	users   map[string]*users.User
	apiKeys map[string]*users.APIKey // keyed by APIKey.GetIdentifier
	lock    sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:   make(map[string]*users.User),
		apiKeys: make(map[string]*users.APIKey),
	}
}

func (ur *FakeUserRepo) Get(_ context.Context, userID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[userID]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user.Clone(), nil
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.users[user.GetIdentifier()] = user.Clone()
	return nil
}

// Delete removes the user and every API key registered to it.
func (ur *FakeUserRepo) Delete(_ context.Context, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[userID]; !ok {
		return users.ErrNotFound
	}
	delete(ur.users, userID)
	for id, key := range ur.apiKeys {
		if key.UserID == userID {
			delete(ur.apiKeys, id)
		}
	}
	return nil
}

func (ur *FakeUserRepo) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.LastLogin = at
	return nil
}

func (ur *FakeUserRepo) ListAPIKeys(_ context.Context, userID string) ([]*users.APIKey, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	keys := make([]*users.APIKey, 0)
	for _, k := range ur.apiKeys {
		if k.UserID == userID {
			keys = append(keys, k.Clone())
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Name < keys[j].Name
	})
	return keys, nil
}

func (ur *FakeUserRepo) UpsertAPIKey(_ context.Context, key *users.APIKey) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.apiKeys[key.GetIdentifier()] = key.Clone()
	return nil
}

func (ur *FakeUserRepo) DeleteAPIKey(_ context.Context, userID, name string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id := users.APIKeyIdentifier(userID, name)
	if _, ok := ur.apiKeys[id]; !ok {
		return users.ErrNotFound
	}
	delete(ur.apiKeys, id)
	return nil
}

func (ur *FakeUserRepo) UpdateAPIKeyLastUsed(_ context.Context, userID, name string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key, ok := ur.apiKeys[users.APIKeyIdentifier(userID, name)]
	if !ok {
		return users.ErrNotFound
	}
	key.LastUsed = at
	return nil
}
