package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.NewFromViper(viper.New())

	require.Equal(t, "Go Auth Engine", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, config.BackendGorm, c.GetStoreBackend())
	require.Equal(t, config.BackendMemory, c.GetNonceBackend())
	require.Equal(t, "auth", c.GetKeyPrefix())
	require.Equal(t, 5*time.Minute, c.GetAuthCodeTimeout())
	require.Equal(t, time.Hour, c.GetDefaultAccessTokenExpiry())
	require.Equal(t, 7*24*time.Hour, c.GetDefaultRefreshTokenExpiry())
	require.Equal(t, 2048, c.GetAccessTokenEntropyBits())
	require.Equal(t, 210000, c.GetPasswordHashIterations())
	require.Equal(t, "blake3", c.GetTokenHashAlgorithm())
	require.Equal(t, "$", c.GetHashSeparator())
	require.Equal(t, "RS256", c.GetSignatureAlgorithm())
	require.Equal(t, 2*time.Minute, c.GetReplaySkew())
	require.NoError(t, config.Validate(c))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTH_STORE_BACKEND", "redis")
	t.Setenv("AUTH_ACCESS_TOKEN_EXPIRY", "30m")
	t.Setenv("AUTH_REDIS_DB", "3")

	c := config.NewFromViper(viper.New())
	require.Equal(t, config.BackendRedis, c.GetStoreBackend())
	require.Equal(t, 30*time.Minute, c.GetDefaultAccessTokenExpiry())
	require.Equal(t, 3, c.GetRedisDB())
}

func TestExplicitValuesWin(t *testing.T) {
	t.Setenv("AUTH_LOG_LEVEL", "warn")
	v := viper.New()
	v.Set(config.KeyLogLevel, "debug")

	c := config.NewFromViper(v)
	require.Equal(t, "debug", c.GetLogLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown store backend", config.KeyStoreBackend, "mongo"},
		{"unknown nonce backend", config.KeyNonceBackend, "gorm"},
		{"datastore without project", config.KeyStoreBackend, config.BackendDatastore},
		{"non positive skew", config.KeyReplaySkew, "0s"},
		{"negative access token expiry", config.KeyAccessTokenExpiry, "-1m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			err := config.Validate(config.NewFromViper(v))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("AUTH_TEST_UNPREFIXED", "value")
	require.Equal(t, "value", config.GetEnv("AUTH_TEST_UNPREFIXED", "default"))
	require.Equal(t, "default", config.GetEnv("AUTH_TEST_MISSING", "default"))
}
