// Package redisstore implements the repository contracts and the replay
// nonce store on redis, so several engine instances can share state.
//
// Key layout under the configured prefix:
//
//	<prefix>:<kind>:rec:<id>          token record (JSON)
//	<prefix>:<kind>:exp               sorted set of ids scored by ValidTo in ms
//	<prefix>:<kind>:redirect:<uri>    set of ids per redirect uri
//	<prefix>:<kind>:triple:<c|r|s>    set of ids per client, redirect, subject
//	<prefix>:client:<clientId|uri>    client (JSON)
//	<prefix>:client-ids:<clientId>    set of client identifiers
//	<prefix>:user:<userId>            user (JSON)
//	<prefix>:apikey:<userId|name>     api key (JSON)
//	<prefix>:apikeys:<userId>         set of api key identifiers
//	<prefix>:nonce:<clientId:nonce>   replay nonce with TTL
package redisstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Options configures Open.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type Store struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an existing client, such as one connected to miniredis.
func New(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

// Open connects to a single redis server and checks it answers.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("[redisstore.Open] address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[redisstore.Open] ping %s", opts.Addr)
	}
	return New(client, opts.KeyPrefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Tokens returns one repository per token kind.
func (s *Store) Tokens() token.Repos {
	return token.Repos{
		AuthorizationCodes: s.TokenRepo(token.KindAuthorizationCode),
		AccessTokens:       s.TokenRepo(token.KindAccessToken),
		RefreshTokens:      s.TokenRepo(token.KindRefreshToken),
	}
}

func (s *Store) TokenRepo(kind token.Kind) *TokenRepo {
	return &TokenRepo{store: s, kind: kind}
}

func (s *Store) Clients() *ClientRepo {
	return &ClientRepo{store: s}
}

// Users serves both users.Repo and users.APIKeyRepo.
func (s *Store) Users() *UserRepo {
	return &UserRepo{store: s}
}

func (s *Store) Nonces() *NonceStore {
	return &NonceStore{store: s}
}

func (s *Store) key(parts ...string) string {
	if s.prefix == "" {
		return strings.Join(parts, ":")
	}
	return s.prefix + ":" + strings.Join(parts, ":")
}

// getJSON loads key into v. It reports false when the key does not exist.
func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

// mgetJSON loads every key that still exists, skipping the others.
func mgetJSON[T any](ctx context.Context, s *Store, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		item := new(T)
		if err := json.Unmarshal([]byte(str), item); err != nil {
			return nil, errors.Wrapf(err, "decode %s", keys[i])
		}
		out = append(out, item)
	}
	return out, nil
}
