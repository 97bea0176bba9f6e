package gormstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/storage/gormstore"
	"github.com/jrsteele09/go-auth-engine/storage/storetest"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *gormstore.Store {
	t.Helper()
	db, err := gormstore.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	store, err := gormstore.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTokenRepo(t *testing.T) {
	storetest.TestTokenRepo(t, func(t *testing.T, kind token.Kind) token.Repo {
		return newStore(t).TokenRepo(kind)
	})
}

func TestClientRepo(t *testing.T) {
	storetest.TestClientRepo(t, newStore(t).Clients())
}

func TestUserRepo(t *testing.T) {
	storetest.TestUserRepo(t, newStore(t).Users())
}

func TestKindsUseSeparateTables(t *testing.T) {
	ctx := context.Background()
	repos := newStore(t).Tokens()

	_, err := repos.AccessTokens.Insert(ctx, &token.Record{
		ID:          "shared-id",
		ClientID:    "app1",
		RedirectURI: "https://a",
		CreatedAt:   storetest.Now,
		ValidTo:     storetest.Now.Add(time.Hour),
	})
	require.NoError(t, err)

	codes, err := repos.AuthorizationCodes.GetCandidates(ctx, "", storetest.Now)
	require.NoError(t, err)
	require.Empty(t, codes)

	access, err := repos.AccessTokens.GetCandidates(ctx, "", storetest.Now)
	require.NoError(t, err)
	require.Len(t, access, 1)
	require.Equal(t, token.KindAccessToken, access[0].Kind)
}

func TestPing(t *testing.T) {
	require.NoError(t, newStore(t).Ping(context.Background()))
}
