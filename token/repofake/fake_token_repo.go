package tokenfakerepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is the in-memory token.Repo for one kind.
type FakeTokenRepo struct {
	kind   token.Kind
	tokens map[string]*token.Record
	lock   sync.RWMutex
}

func NewFakeTokenRepo(kind token.Kind) *FakeTokenRepo {
	return &FakeTokenRepo{
		kind:   kind,
		tokens: make(map[string]*token.Record),
	}
}

// NewFakeRepos returns a fresh repository for every kind.
func NewFakeRepos() token.Repos {
	return token.Repos{
		AuthorizationCodes: NewFakeTokenRepo(token.KindAuthorizationCode),
		AccessTokens:       NewFakeTokenRepo(token.KindAccessToken),
		RefreshTokens:      NewFakeTokenRepo(token.KindRefreshToken),
	}
}

func (tr *FakeTokenRepo) GetCandidates(_ context.Context, filterKey string, notExpiredAfter time.Time) ([]*token.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	candidates := make([]*token.Record, 0)
	for _, r := range tr.tokens {
		if filterKey != "" && r.RedirectURI != filterKey {
			continue
		}
		if !r.ValidTo.After(notExpiredAfter) {
			continue
		}
		candidates = append(candidates, r.Clone())
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates, nil
}

func (tr *FakeTokenRepo) Insert(_ context.Context, record *token.Record) (*token.Record, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, exists := tr.tokens[record.ID]; exists {
		return nil, errors.Errorf("%s %s already exists", tr.kind, record.ID)
	}
	tr.tokens[record.ID] = record.Clone()
	return record, nil
}

func (tr *FakeTokenRepo) DeleteByID(_ context.Context, record *token.Record) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[record.ID]; !ok {
		return false, nil
	}
	delete(tr.tokens, record.ID)
	return true, nil
}

func (tr *FakeTokenRepo) DeleteByClientRedirectSubject(_ context.Context, clientID, redirectURI, subject string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	count := 0
	for id, r := range tr.tokens {
		if r.ClientID == clientID && r.RedirectURI == redirectURI && r.Subject == subject {
			delete(tr.tokens, id)
			count++
		}
	}
	return count, nil
}

func (tr *FakeTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	count := 0
	for id, r := range tr.tokens {
		if !r.ValidTo.After(before) {
			delete(tr.tokens, id)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored records, expired ones included.
func (tr *FakeTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}

// All returns copies of every stored record.
func (tr *FakeTokenRepo) All() []*token.Record {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	records := make([]*token.Record, 0, len(tr.tokens))
	for _, r := range tr.tokens {
		records = append(records, r.Clone())
	}
	return records
}
