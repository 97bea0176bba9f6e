// Package engine assembles the providers, authenticators, token manager and
// grant service from configuration and a set of opened stores.
package engine

import (
	"time"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/encryption"
	"github.com/jrsteele09/go-auth-engine/grant"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/jrsteele09/go-auth-engine/storage"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Engine holds every wired component.
type Engine struct {
	Passwords hashing.Provider // Client secrets and user passwords, bcrypt hashes still accepted
	Signer    *signing.Signer
	Guard     *replay.Guard
	Tokens    *token.Manager
	Clients   *auth.ClientAuthenticator
	Users     *auth.UserAuthenticator
	Grants    *grant.Service
}

type options struct {
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

type Option func(*options)

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = recorder
	}
}

// New builds an Engine over stores using the values in cfg.
func New(cfg config.Config, stores *storage.Stores, opts ...Option) (*Engine, error) {
	if stores == nil {
		return nil, errors.New("[engine.New] stores are required")
	}
	o := options{nowFunc: time.Now, logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	pbkdf2Hasher, err := hashing.NewPBKDF2(
		hashing.WithIterations(cfg.GetPasswordHashIterations()),
		hashing.WithSeparator(cfg.GetHashSeparator()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] password hasher")
	}
	legacy, err := hashing.NewBcrypt(0)
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] legacy password hasher")
	}
	passwords, err := hashing.NewMigrating(pbkdf2Hasher, legacy)
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] password hasher")
	}
	tokenHasher, err := hashing.New(cfg.GetTokenHashAlgorithm(), hashing.WithSeparator(cfg.GetHashSeparator()))
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] token hasher")
	}
	cipher, err := encryption.New(encryption.WithKDFIterations(cfg.GetTicketKDFIterations()))
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] cipher")
	}
	codec, err := principal.NewCodec(cipher)
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] codec")
	}
	signer, err := signing.New(signing.Algorithm(cfg.GetSignatureAlgorithm()))
	if err != nil {
		return nil, errors.Wrap(err, "[engine.New] signer")
	}

	guard := replay.NewGuard(stores.Nonces,
		replay.WithNowFunc(o.nowFunc),
		replay.WithLogger(o.logger),
		replay.WithMetrics(o.metrics),
	)

	tokens, err := token.New(stores.Tokens, tokenHasher, codec,
		token.WithNowFunc(o.nowFunc),
		token.WithLogger(o.logger),
		token.WithMetrics(o.metrics),
		token.WithEntropyBits(cfg.GetCodeEntropyBits(), cfg.GetAccessTokenEntropyBits(), cfg.GetRefreshTokenEntropyBits()),
	)
	if err != nil {
		return nil, err
	}

	creds := auth.Credentials{Hasher: passwords, Signer: signer, Guard: guard}
	authOptions := []auth.Option{
		auth.WithSkew(cfg.GetReplaySkew()),
		auth.WithNowFunc(o.nowFunc),
		auth.WithLogger(o.logger),
		auth.WithMetrics(o.metrics),
	}
	clientAuth, err := auth.NewClientAuthenticator(stores.Clients, creds, authOptions...)
	if err != nil {
		return nil, err
	}
	userAuth, err := auth.NewUserAuthenticator(stores.Users, stores.APIKeys, stores.Clients, creds, authOptions...)
	if err != nil {
		return nil, err
	}

	grants, err := grant.New(tokens, clientAuth, userAuth, stores.Clients, stores.Users,
		grant.WithLifetimes(grant.Lifetimes{
			AuthorizationCode: cfg.GetAuthCodeTimeout(),
			AccessToken:       cfg.GetDefaultAccessTokenExpiry(),
			RefreshToken:      cfg.GetDefaultRefreshTokenExpiry(),
		}),
		grant.WithNowFunc(o.nowFunc),
		grant.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Passwords: passwords,
		Signer:    signer,
		Guard:     guard,
		Tokens:    tokens,
		Clients:   clientAuth,
		Users:     userAuth,
		Grants:    grants,
	}, nil
}
