package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when it is read from the environment,
// so store_backend is AUTH_STORE_BACKEND.
const EnvPrefix = "AUTH"

var ErrInvalidConfig = errors.New("invalid config")

type Config interface {
	EnvConfig
	StorageConfig
	OAuthConfig
	SecurityConfig
}

type mainConfig struct {
	EnvVars
	Storage
	OAuth
	Security
}

var defaults = map[string]any{
	KeyAppName:     "Go Auth Engine",
	KeyEnv:         "DEV",
	KeyLogLevel:    "info",
	KeyMetricsAddr: ":9090",

	KeyStoreBackend:       BackendGorm,
	KeyDatabaseDSN:        "file:auth.db",
	KeyRedisAddr:          "localhost:6379",
	KeyRedisPassword:      "",
	KeyRedisDB:            0,
	KeyKeyPrefix:          "auth",
	KeyNonceBackend:       BackendMemory,
	KeyDatastoreProject:   "",
	KeyDatastoreNamespace: "",

	KeyAuthCodeTimeout:         5 * time.Minute,
	KeyAccessTokenExpiry:       time.Hour,
	KeyRefreshTokenExpiry:      7 * 24 * time.Hour,
	KeyCodeEntropyBits:         256,
	KeyAccessTokenEntropyBits:  2048,
	KeyRefreshTokenEntropyBits: 256,
	KeyPasswordHashIterations:  210000,
	KeyTokenHashAlgorithm:      "blake3",
	KeyHashSeparator:           "$",
	KeyTicketKDFIterations:     10000,
	KeySignatureAlgorithm:      "RS256",
	KeyReplaySkew:              2 * time.Minute,
	KeyCleanupInterval:         10 * time.Minute,
}

// New reads configuration from the global viper instance, which is where
// cobra flags are bound.
func New() Config {
	return NewFromViper(viper.GetViper())
}

// NewFromViper registers defaults and environment lookups on v and returns a
// Config that reads through it.
func NewFromViper(v *viper.Viper) Config {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	src := source{v: v}
	return mainConfig{
		EnvVars:  EnvVars{src},
		Storage:  Storage{src},
		OAuth:    OAuth{src},
		Security: Security{src},
	}
}

// Validate rejects values no component can start with.
func Validate(c Config) error {
	switch c.GetStoreBackend() {
	case BackendMemory, BackendGorm, BackendRedis, BackendDatastore:
	default:
		return errors.Wrapf(ErrInvalidConfig, "%s %q", KeyStoreBackend, c.GetStoreBackend())
	}
	switch c.GetNonceBackend() {
	case BackendMemory, BackendRedis:
	default:
		return errors.Wrapf(ErrInvalidConfig, "%s %q", KeyNonceBackend, c.GetNonceBackend())
	}
	if c.GetStoreBackend() == BackendDatastore && c.GetDatastoreProject() == "" {
		return errors.Wrapf(ErrInvalidConfig, "%s is required for the datastore backend", KeyDatastoreProject)
	}
	for key, d := range map[string]time.Duration{
		KeyAuthCodeTimeout:    c.GetAuthCodeTimeout(),
		KeyAccessTokenExpiry:  c.GetDefaultAccessTokenExpiry(),
		KeyRefreshTokenExpiry: c.GetDefaultRefreshTokenExpiry(),
		KeyReplaySkew:         c.GetReplaySkew(),
		KeyCleanupInterval:    c.GetCleanupInterval(),
	} {
		if d <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be positive", key)
		}
	}
	return nil
}

type source struct {
	v *viper.Viper
}

func (s source) getString(key string) string {
	return s.v.GetString(key)
}

func (s source) getInt(key string) int {
	return s.v.GetInt(key)
}

func (s source) getDuration(key string) time.Duration {
	return s.v.GetDuration(key)
}
