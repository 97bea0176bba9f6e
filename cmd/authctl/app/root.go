// Package app provides the commands of the authctl administration CLI.
package app

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/internal/engine"
	"github.com/jrsteele09/go-auth-engine/internal/logging"
	"github.com/jrsteele09/go-auth-engine/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the configuration shared by every subcommand. Flags are bound
// to v, so they override AUTH_* environment variables and defaults.
type cli struct {
	v *viper.Viper
}

func (c *cli) config() config.Config {
	return config.NewFromViper(c.v)
}

// open connects the configured stores and builds the engine over them. The
// caller closes the returned stores.
func (c *cli) open(ctx context.Context) (*storage.Stores, *engine.Engine, error) {
	cfg := c.config()
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	stores, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.New(cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, nil, err
	}
	return stores, e, nil
}

var persistentFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"env", config.KeyEnv, "Environment name, DEV logs to the console"},
	{"log-level", config.KeyLogLevel, "Log level"},
	{"store-backend", config.KeyStoreBackend, "Store backend: memory, gorm, redis or datastore"},
	{"database-dsn", config.KeyDatabaseDSN, "Database DSN for the gorm backend"},
	{"redis-addr", config.KeyRedisAddr, "Redis address for the redis backend"},
	{"key-prefix", config.KeyKeyPrefix, "Key prefix for the redis backend"},
	{"datastore-project", config.KeyDatastoreProject, "Google Cloud project for the datastore backend"},
	{"datastore-namespace", config.KeyDatastoreNamespace, "Datastore namespace"},
	{"signature-algorithm", config.KeySignatureAlgorithm, "Signature algorithm for keys and signed requests"},
}

// NewRootCmd creates the root command for the authctl CLI.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:               "authctl",
		DisableAutoGenTag: true,
		Short:             "Administer an auth engine deployment",
		Long: `authctl manages the clients, users and API keys of an auth engine deployment,
generates hashes and key pairs, signs requests for testing and removes expired tokens.

Storage and security settings come from AUTH_* environment variables and can be
overridden with the flags below.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg := c.config()
			return logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())
		},
	}

	for _, f := range persistentFlags {
		rootCmd.PersistentFlags().String(f.name, "", f.usage)
		if err := c.v.BindPFlag(f.key, rootCmd.PersistentFlags().Lookup(f.name)); err != nil {
			log.Error().Err(err).Str("flag", f.name).Msg("binding flag")
		}
	}

	rootCmd.AddCommand(
		c.newHashCmd(),
		c.newKeygenCmd(),
		c.newSignCmd(),
		c.newClientCmd(),
		c.newUserCmd(),
		c.newAPIKeyCmd(),
		c.newCleanupCmd(),
	)
	return rootCmd
}
