package fakeclientrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

// FakeClientRepo is the in-memory clients.Repo.
type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func (r *FakeClientRepo) Get(_ context.Context, clientID, redirectURI string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clients.Identifier(clientID, redirectURI)]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return client.Clone(), nil
}

func (r *FakeClientRepo) ListByClientID(_ context.Context, clientID string) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0)
	for _, v := range r.clients {
		if v.ClientID == clientID {
			list = append(list, v.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RedirectURI < list[j].RedirectURI
	})
	return list, nil
}

func (r *FakeClientRepo) Upsert(_ context.Context, client *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[client.GetIdentifier()] = client.Clone()
	return nil
}

func (r *FakeClientRepo) Delete(_ context.Context, clientID, redirectURI string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	key := clients.Identifier(clientID, redirectURI)
	if _, ok := r.clients[key]; !ok {
		return clients.ErrNotFound
	}
	delete(r.clients, key)
	return nil
}

func (r *FakeClientRepo) UpdateLastUsed(_ context.Context, clientID, redirectURI string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	client, ok := r.clients[clients.Identifier(clientID, redirectURI)]
	if !ok {
		return clients.ErrNotFound
	}
	client.LastUsed = at
	return nil
}
