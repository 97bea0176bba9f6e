package app_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-engine/cmd/authctl/app"
	"github.com/jrsteele09/go-auth-engine/digest"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/jrsteele09/go-auth-engine/storage"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := app.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error", "--env", "TEST"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// fields parses "name: value" lines.
func fields(output string) map[string]string {
	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if ok {
			values[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return values
}

func TestHash(t *testing.T) {
	t.Setenv("AUTH_PASSWORD_HASH_ITERATIONS", "10")

	for _, algorithm := range []string{hashing.AlgorithmPBKDF2, hashing.AlgorithmBlake3, "bcrypt"} {
		t.Run(algorithm, func(t *testing.T) {
			out, err := execute(t, "hash", "--algorithm", algorithm, "p4ssword")
			require.NoError(t, err)
			hash := strings.TrimSpace(out)
			require.NotEmpty(t, hash)

			out, err = execute(t, "hash", "--algorithm", algorithm, "--verify", hash, "p4ssword")
			require.NoError(t, err)
			require.Equal(t, "valid\n", out)

			_, err = execute(t, "hash", "--algorithm", algorithm, "--verify", hash, "wrong")
			require.Error(t, err)
		})
	}

	_, err := execute(t, "hash", "--algorithm", "md5", "text")
	require.Error(t, err)
}

func TestKeygenAndSign(t *testing.T) {
	out, err := execute(t, "--signature-algorithm", "ES256", "keygen")
	require.NoError(t, err)
	keys := fields(out)
	require.Equal(t, "ES256", keys["algorithm"])
	require.NotEmpty(t, keys["private_key"])
	require.NotEmpty(t, keys["public_key"])

	out, err = execute(t, "--signature-algorithm", "ES256", "sign",
		"--client-id", "app1",
		"--redirect-uri", "https://app1/cb",
		"--request-url", "https://auth/token",
		"--private-key", keys["private_key"])
	require.NoError(t, err)

	d, err := digest.ParseSignature(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "app1", d.ClientID)
	require.NotEmpty(t, d.Nonce)
	require.NotZero(t, d.Timestamp)

	signer, err := signing.New(signing.ES256)
	require.NoError(t, err)
	require.True(t, signer.ValidateSignature(d.CanonicalData(), d.Signature, keys["public_key"]))

	_, err = execute(t, "sign", "--client-id", "app1")
	require.Error(t, err, "private key is required")
}

func TestAdminCommands(t *testing.T) {
	t.Setenv("AUTH_PASSWORD_HASH_ITERATIONS", "10")
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db")
	store := []string{"--store-backend", config.BackendGorm, "--database-dsn", dsn, "--signature-algorithm", "ES256"}
	run := func(args ...string) (string, error) {
		return execute(t, append(append([]string{}, store...), args...)...)
	}

	out, err := run("client", "add", "--client-id", "app1", "--redirect-uri", "https://app1/cb", "--scope", "read", "--scope", "write")
	require.NoError(t, err)
	clientOut := fields(out)
	require.Len(t, clientOut["client_secret"], 43)

	out, err = run("user", "add", "--user-id", "alice", "--email", "alice@example.com", "--role", "admin", "--password", "Passw0rdX")
	require.NoError(t, err)
	require.Equal(t, "alice", fields(out)["user_id"])

	_, err = run("user", "add", "--user-id", "bob", "--password", "weak")
	require.Error(t, err)

	out, err = run("apikey", "add", "--user-id", "alice", "--name", "laptop")
	require.NoError(t, err)
	keyOut := fields(out)
	require.NotEmpty(t, keyOut["private_key"])

	_, err = run("apikey", "add", "--user-id", "nobody", "--name", "laptop")
	require.Error(t, err)

	out, err = run("cleanup")
	require.NoError(t, err)
	require.Equal(t, "deleted 0 expired records\n", out)

	v := viper.New()
	v.Set(config.KeyStoreBackend, config.BackendGorm)
	v.Set(config.KeyDatabaseDSN, dsn)
	stores, err := storage.Open(context.Background(), config.NewFromViper(v))
	require.NoError(t, err)
	defer func() { _ = stores.Close() }()
	ctx := context.Background()

	client, err := stores.Clients.Get(ctx, "app1", "https://app1/cb")
	require.NoError(t, err)
	require.Equal(t, []string{"read", "write"}, client.Scopes)
	require.True(t, client.Enabled)
	hasher, err := hashing.NewPBKDF2()
	require.NoError(t, err)
	require.True(t, hasher.ValidateHash(clientOut["client_secret"], client.ClientSecret))

	user, err := stores.Users.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, hasher.ValidateHash("Passw0rdX", user.Password))
	require.Equal(t, []string{"admin"}, user.Roles)

	keys, err := stores.APIKeys.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, keyOut["public_key"], keys[0].APIKey)
}
