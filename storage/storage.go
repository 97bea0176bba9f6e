// Package storage opens the repositories selected by configuration.
package storage

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	fakeclientrepo "github.com/jrsteele09/go-auth-engine/clients/fakerepo"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/jrsteele09/go-auth-engine/storage/docstore"
	"github.com/jrsteele09/go-auth-engine/storage/gormstore"
	"github.com/jrsteele09/go-auth-engine/storage/redisstore"
	"github.com/jrsteele09/go-auth-engine/token"
	tokenfakerepo "github.com/jrsteele09/go-auth-engine/token/repofake"
	"github.com/jrsteele09/go-auth-engine/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-engine/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stores bundles every repository the engine needs.
type Stores struct {
	Tokens  token.Repos
	Clients clients.Repo
	Users   users.Repo
	APIKeys users.APIKeyRepo
	Nonces  replay.NonceStore

	pingers []func(context.Context) error
	closers []func() error
}

type options struct {
	logger  zerolog.Logger
	nowFunc func() time.Time
}

type Option func(*options)

// WithLogger sets the logger used for database diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNowFunc sets the clock of the in-memory nonce store.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

// Open connects the configured store backend, plus a redis nonce store when
// nonces must be shared and the store backend is not redis already.
func Open(ctx context.Context, cfg config.StorageConfig, opts ...Option) (*Stores, error) {
	o := options{logger: log.Logger, nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stores{}
	var redisStore *redisstore.Store

	switch backend := cfg.GetStoreBackend(); backend {
	case config.BackendMemory:
		userRepo := fakeuserrepo.NewFakeUserRepo()
		s.Tokens = tokenfakerepo.NewFakeRepos()
		s.Clients = fakeclientrepo.NewFakeClientRepo()
		s.Users = userRepo
		s.APIKeys = userRepo

	case config.BackendGorm:
		db, err := gormstore.Open(cfg.GetDatabaseDSN(), o.logger)
		if err != nil {
			return nil, err
		}
		store, err := gormstore.New(db)
		if err != nil {
			return nil, err
		}
		userRepo := store.Users()
		s.Tokens = store.Tokens()
		s.Clients = store.Clients()
		s.Users = userRepo
		s.APIKeys = userRepo
		s.add(store.Ping, store.Close)

	case config.BackendRedis:
		store, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		redisStore = store
		userRepo := store.Users()
		s.Tokens = store.Tokens()
		s.Clients = store.Clients()
		s.Users = userRepo
		s.APIKeys = userRepo
		s.add(store.Ping, store.Close)

	case config.BackendDatastore:
		store, err := docstore.Open(ctx, cfg.GetDatastoreProject(), cfg.GetDatastoreNamespace())
		if err != nil {
			return nil, err
		}
		userRepo := store.Users()
		s.Tokens = store.Tokens()
		s.Clients = store.Clients()
		s.Users = userRepo
		s.APIKeys = userRepo
		s.add(store.Ping, store.Close)

	default:
		return nil, errors.Wrapf(config.ErrInvalidConfig, "[storage.Open] unknown store backend %q", backend)
	}

	switch cfg.GetNonceBackend() {
	case config.BackendRedis:
		if redisStore == nil {
			store, err := openRedis(ctx, cfg)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			redisStore = store
			s.add(store.Ping, store.Close)
		}
		s.Nonces = redisStore.Nonces()
	default:
		if redisStore != nil {
			s.Nonces = redisStore.Nonces()
		} else {
			s.Nonces = replay.NewMemoryStore(o.nowFunc)
		}
	}
	return s, nil
}

func openRedis(ctx context.Context, cfg config.StorageConfig) (*redisstore.Store, error) {
	return redisstore.Open(ctx, redisstore.Options{
		Addr:      cfg.GetRedisAddr(),
		Password:  cfg.GetRedisPassword(),
		DB:        cfg.GetRedisDB(),
		KeyPrefix: cfg.GetKeyPrefix(),
	})
}

func (s *Stores) add(ping func(context.Context) error, closer func() error) {
	s.pingers = append(s.pingers, ping)
	s.closers = append(s.closers, closer)
}

// Ping checks every connected backend. The memory backend always succeeds.
func (s *Stores) Ping(ctx context.Context) error {
	for _, ping := range s.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every backend connection, returning the first error.
func (s *Stores) Close() error {
	var first error
	for _, closer := range s.closers {
		if err := closer(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
