// Package storetest holds the repository contract tests shared by every
// storage backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/stretchr/testify/require"
)

// Now is the reference instant used by the contract tests. Backends that
// store timestamps at reduced precision must at least keep milliseconds.
var Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// TokenRepoFactory returns an empty repository for kind.
type TokenRepoFactory func(t *testing.T, kind token.Kind) token.Repo

func record(id, clientID, redirectURI, subject string, created time.Time, ttl time.Duration) *token.Record {
	return &token.Record{
		ID:          id,
		Kind:        token.KindAccessToken,
		ClientID:    clientID,
		Subject:     subject,
		RedirectURI: redirectURI,
		Scope:       []string{"read", "write"},
		Hash:        "blake3$1$salt$" + id,
		Ticket:      "ticket-" + id,
		CreatedAt:   created,
		ValidTo:     created.Add(ttl),
	}
}

func requireSameRecord(t *testing.T, expected, actual *token.Record) {
	t.Helper()
	require.Equal(t, expected.ID, actual.ID)
	require.Equal(t, expected.ClientID, actual.ClientID)
	require.Equal(t, expected.Subject, actual.Subject)
	require.Equal(t, expected.RedirectURI, actual.RedirectURI)
	require.Equal(t, expected.Scope, actual.Scope)
	require.Equal(t, expected.Hash, actual.Hash)
	require.Equal(t, expected.Ticket, actual.Ticket)
	require.True(t, expected.CreatedAt.Equal(actual.CreatedAt), "created %s != %s", expected.CreatedAt, actual.CreatedAt)
	require.True(t, expected.ValidTo.Equal(actual.ValidTo), "valid to %s != %s", expected.ValidTo, actual.ValidTo)
}

func ids(records []*token.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

// TestTokenRepo runs the token.Repo contract against repos built by newRepo.
func TestTokenRepo(t *testing.T, newRepo TokenRepoFactory) {
	ctx := context.Background()

	t.Run("candidates filter by redirect and expiry", func(t *testing.T) {
		repo := newRepo(t, token.KindAccessToken)
		a1 := record("a1", "app1", "https://a", "alice", Now, time.Hour)
		a2 := record("a2", "app1", "https://a", "bob", Now.Add(time.Second), time.Hour)
		b1 := record("b1", "app1", "https://b", "alice", Now, time.Hour)
		old := record("old", "app1", "https://a", "carol", Now.Add(-2*time.Hour), time.Hour)
		for _, r := range []*token.Record{a2, b1, old, a1} {
			_, err := repo.Insert(ctx, r)
			require.NoError(t, err)
		}

		candidates, err := repo.GetCandidates(ctx, "https://a", Now)
		require.NoError(t, err)
		require.Equal(t, []string{"a1", "a2"}, ids(candidates))
		requireSameRecord(t, a1, candidates[0])

		all, err := repo.GetCandidates(ctx, "", Now)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a1", "a2", "b1"}, ids(all))

		later, err := repo.GetCandidates(ctx, "https://a", Now.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, []string{"a2"}, ids(later), "valid to equal to the bound is expired")
	})

	t.Run("record without ticket or scope", func(t *testing.T) {
		repo := newRepo(t, token.KindRefreshToken)
		r := record("r1", "app1", "https://a", "alice", Now, time.Hour)
		r.Kind = token.KindRefreshToken
		r.Ticket = ""
		r.Scope = nil
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)

		candidates, err := repo.GetCandidates(ctx, "https://a", Now)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		require.Empty(t, candidates[0].Ticket)
		require.Empty(t, candidates[0].Scope)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		repo := newRepo(t, token.KindAuthorizationCode)
		_, err := repo.Insert(ctx, record("dup", "app1", "https://a", "alice", Now, time.Hour))
		require.NoError(t, err)
		_, err = repo.Insert(ctx, record("dup", "app1", "https://a", "alice", Now, time.Hour))
		require.Error(t, err)
	})

	t.Run("delete by id reports presence", func(t *testing.T) {
		repo := newRepo(t, token.KindAuthorizationCode)
		r := record("c1", "app1", "https://a", "alice", Now, time.Hour)
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)

		deleted, err := repo.DeleteByID(ctx, r)
		require.NoError(t, err)
		require.True(t, deleted)
		deleted, err = repo.DeleteByID(ctx, r)
		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("concurrent delete by id has one winner", func(t *testing.T) {
		repo := newRepo(t, token.KindAuthorizationCode)
		r := record("race", "app1", "https://a", "alice", Now, time.Hour)
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				deleted, err := repo.DeleteByID(ctx, r)
				if err == nil && deleted {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("delete by client redirect subject", func(t *testing.T) {
		repo := newRepo(t, token.KindAccessToken)
		for _, r := range []*token.Record{
			record("x1", "app1", "https://a", "alice", Now, time.Hour),
			record("x2", "app1", "https://a", "alice", Now.Add(time.Second), time.Hour),
			record("x3", "app1", "https://a", "bob", Now, time.Hour),
			record("x4", "app1", "https://b", "alice", Now, time.Hour),
			record("x5", "app2", "https://a", "alice", Now, time.Hour),
		} {
			_, err := repo.Insert(ctx, r)
			require.NoError(t, err)
		}

		count, err := repo.DeleteByClientRedirectSubject(ctx, "app1", "https://a", "alice")
		require.NoError(t, err)
		require.Equal(t, 2, count)

		all, err := repo.GetCandidates(ctx, "", Now)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"x3", "x4", "x5"}, ids(all))

		count, err = repo.DeleteByClientRedirectSubject(ctx, "app1", "https://a", "alice")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("delete by client redirect subject matches fields exactly", func(t *testing.T) {
		repo := newRepo(t, token.KindAccessToken)
		for _, r := range []*token.Record{
			record("p1", "app|1", "https://a", "alice", Now, time.Hour),
			record("p2", "app", "1|https://a", "alice", Now, time.Hour),
		} {
			_, err := repo.Insert(ctx, r)
			require.NoError(t, err)
		}

		count, err := repo.DeleteByClientRedirectSubject(ctx, "app", "1|https://a", "alice")
		require.NoError(t, err)
		require.Equal(t, 1, count)

		all, err := repo.GetCandidates(ctx, "", Now)
		require.NoError(t, err)
		require.Equal(t, []string{"p1"}, ids(all))
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := newRepo(t, token.KindAccessToken)
		for i, ttl := range []time.Duration{-time.Minute, 0, time.Minute} {
			_, err := repo.Insert(ctx, record(fmt.Sprintf("e%d", i), "app1", "https://a", fmt.Sprintf("s%d", i), Now, ttl))
			require.NoError(t, err)
		}

		count, err := repo.DeleteExpired(ctx, Now)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		all, err := repo.GetCandidates(ctx, "", Now.Add(-time.Hour))
		require.NoError(t, err)
		require.Equal(t, []string{"e2"}, ids(all))
	})
}

// TestClientRepo runs the clients.Repo contract against repo, which must be empty.
func TestClientRepo(t *testing.T, repo clients.Repo) {
	ctx := context.Background()

	_, err := repo.Get(ctx, "app1", "https://a")
	require.ErrorIs(t, err, clients.ErrNotFound)

	a := &clients.Client{
		ClientID:     "app1",
		RedirectURI:  "https://a",
		Description:  "first",
		ClientSecret: "pbkdf2_sha256$10$salt$digest",
		PublicKey:    "pub",
		Scopes:       []string{"read"},
		Enabled:      true,
	}
	b := &clients.Client{ClientID: "app1", RedirectURI: "https://b", Scopes: []string{"write"}}
	other := &clients.Client{ClientID: "app2", RedirectURI: "https://a", Enabled: true}
	for _, c := range []*clients.Client{b, a, other} {
		require.NoError(t, repo.Upsert(ctx, c))
	}

	got, err := repo.Get(ctx, "app1", "https://a")
	require.NoError(t, err)
	require.Equal(t, a.Description, got.Description)
	require.Equal(t, a.ClientSecret, got.ClientSecret)
	require.Equal(t, a.PublicKey, got.PublicKey)
	require.Equal(t, a.Scopes, got.Scopes)
	require.True(t, got.Enabled)
	require.True(t, got.LastUsed.IsZero())

	list, err := repo.ListByClientID(ctx, "app1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "https://a", list[0].RedirectURI)
	require.Equal(t, "https://b", list[1].RedirectURI)
	require.False(t, list[1].Enabled)

	a.Description = "updated"
	require.NoError(t, repo.Upsert(ctx, a))
	got, err = repo.Get(ctx, "app1", "https://a")
	require.NoError(t, err)
	require.Equal(t, "updated", got.Description)

	require.NoError(t, repo.UpdateLastUsed(ctx, "app1", "https://a", Now))
	got, err = repo.Get(ctx, "app1", "https://a")
	require.NoError(t, err)
	require.True(t, Now.Equal(got.LastUsed))
	require.ErrorIs(t, repo.UpdateLastUsed(ctx, "app1", "https://c", Now), clients.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "app1", "https://b"))
	require.ErrorIs(t, repo.Delete(ctx, "app1", "https://b"), clients.ErrNotFound)
	list, err = repo.ListByClientID(ctx, "app1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = repo.ListByClientID(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, list)
}

// UserStore is a backend serving both user contracts.
type UserStore interface {
	users.Repo
	users.APIKeyRepo
}

// TestUserRepo runs the users.Repo and users.APIKeyRepo contracts against
// repo, which must be empty.
func TestUserRepo(t *testing.T, repo UserStore) {
	ctx := context.Background()

	_, err := repo.Get(ctx, "alice")
	require.ErrorIs(t, err, users.ErrNotFound)

	alice := &users.User{
		UserID:     "alice",
		Email:      "alice@example.com",
		Password:   "pbkdf2_sha256$10$salt$digest",
		FirstName:  "Alice",
		LastName:   "Smith",
		Roles:      []string{"admin", "reader"},
		Enabled:    true,
		DateJoined: Now.Add(-24 * time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, alice))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.Email, got.Email)
	require.Equal(t, alice.Password, got.Password)
	require.Equal(t, alice.Roles, got.Roles)
	require.True(t, got.Enabled)
	require.True(t, alice.DateJoined.Equal(got.DateJoined))
	require.True(t, got.LastLogin.IsZero())

	require.NoError(t, repo.UpdateLastLogin(ctx, "alice", Now))
	got, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, Now.Equal(got.LastLogin))
	require.ErrorIs(t, repo.UpdateLastLogin(ctx, "bob", Now), users.ErrNotFound)

	for _, name := range []string{"laptop", "ci"} {
		require.NoError(t, repo.UpsertAPIKey(ctx, &users.APIKey{UserID: "alice", Name: name, APIKey: "pub-" + name, CreatedAt: Now}))
	}
	require.NoError(t, repo.UpsertAPIKey(ctx, &users.APIKey{UserID: "bob", Name: "laptop", APIKey: "pub-bob"}))

	keys, err := repo.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, "ci", keys[0].Name)
	require.Equal(t, "pub-ci", keys[0].APIKey)
	require.Equal(t, "laptop", keys[1].Name)
	require.True(t, Now.Equal(keys[1].CreatedAt))

	require.NoError(t, repo.UpdateAPIKeyLastUsed(ctx, "alice", "ci", Now))
	keys, err = repo.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	require.True(t, Now.Equal(keys[0].LastUsed))
	require.True(t, keys[1].LastUsed.IsZero())
	require.ErrorIs(t, repo.UpdateAPIKeyLastUsed(ctx, "alice", "phone", Now), users.ErrNotFound)

	require.NoError(t, repo.DeleteAPIKey(ctx, "alice", "ci"))
	require.ErrorIs(t, repo.DeleteAPIKey(ctx, "alice", "ci"), users.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "alice"))
	require.ErrorIs(t, repo.Delete(ctx, "alice"), users.ErrNotFound)
	keys, err = repo.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, keys, "deleting a user removes its api keys")

	keys, err = repo.ListAPIKeys(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}
