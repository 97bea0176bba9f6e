package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/jrsteele09/go-auth-engine/storage"
	"github.com/jrsteele09/go-auth-engine/storage/redisstore"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, values map[string]any) config.Config {
	t.Helper()
	v := viper.New()
	for key, value := range values {
		v.Set(key, value)
	}
	return config.NewFromViper(v)
}

func open(t *testing.T, cfg config.Config) *storage.Stores {
	t.Helper()
	stores, err := storage.Open(context.Background(), cfg, storage.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

func requireUsable(t *testing.T, stores *storage.Stores) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, stores.Ping(ctx))

	require.NoError(t, stores.Clients.Upsert(ctx, &clients.Client{ClientID: "app1", RedirectURI: "https://a", Enabled: true}))
	got, err := stores.Clients.Get(ctx, "app1", "https://a")
	require.NoError(t, err)
	require.True(t, got.Enabled)

	added, err := stores.Nonces.Add(ctx, "app1:n1", time.Minute)
	require.NoError(t, err)
	require.True(t, added)
	added, err = stores.Nonces.Add(ctx, "app1:n1", time.Minute)
	require.NoError(t, err)
	require.False(t, added)

	require.NotNil(t, stores.Tokens.AuthorizationCodes)
	require.NotNil(t, stores.Tokens.AccessTokens)
	require.NotNil(t, stores.Tokens.RefreshTokens)
	require.NotNil(t, stores.Users)
	require.NotNil(t, stores.APIKeys)
}

func TestOpenMemory(t *testing.T) {
	stores := open(t, newConfig(t, map[string]any{config.KeyStoreBackend: config.BackendMemory}))
	requireUsable(t, stores)
	require.IsType(t, &replay.MemoryStore{}, stores.Nonces)
}

func TestOpenGorm(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db")
	stores := open(t, newConfig(t, map[string]any{
		config.KeyStoreBackend: config.BackendGorm,
		config.KeyDatabaseDSN:  dsn,
	}))
	requireUsable(t, stores)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := open(t, newConfig(t, map[string]any{
		config.KeyStoreBackend: config.BackendRedis,
		config.KeyRedisAddr:    mr.Addr(),
	}))
	requireUsable(t, stores)
	require.IsType(t, &redisstore.NonceStore{}, stores.Nonces, "redis deployments share nonces")
	require.True(t, mr.Exists("auth:client:app1|https://a"))
}

func TestOpenGormWithRedisNonces(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := open(t, newConfig(t, map[string]any{
		config.KeyStoreBackend: config.BackendGorm,
		config.KeyDatabaseDSN:  "file:" + filepath.Join(t.TempDir(), "auth.db"),
		config.KeyNonceBackend: config.BackendRedis,
		config.KeyRedisAddr:    mr.Addr(),
	}))
	requireUsable(t, stores)
	require.IsType(t, &redisstore.NonceStore{}, stores.Nonces)
	require.True(t, mr.Exists("auth:nonce:app1:n1"))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := storage.Open(context.Background(), newConfig(t, map[string]any{config.KeyStoreBackend: "mongo"}))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpenFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := storage.Open(context.Background(), newConfig(t, map[string]any{
		config.KeyStoreBackend: config.BackendMemory,
		config.KeyNonceBackend: config.BackendRedis,
		config.KeyRedisAddr:    addr,
	}))
	require.Error(t, err)
}
