package replay

import (
	"context"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NonceStore records single-use keys. Add must be an atomic insert-if-absent:
// it reports true only to the caller that created the entry.
type NonceStore interface {
	Add(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Guard rejects signed requests that are stale or that reuse a nonce.
type Guard struct {
	store   NonceStore
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

type GuardOption func(*Guard)

func WithNowFunc(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) GuardOption {
	return func(g *Guard) {
		g.metrics = recorder
	}
}

func NewGuard(store NonceStore, options ...GuardOption) *Guard {
	g := &Guard{
		store:   store,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Validate accepts a request when its timestamp (unix seconds) is within skew
// of the server clock and the client has not used nonce while that timestamp
// could still pass the skew check.
func (g *Guard) Validate(ctx context.Context, clientID, nonce string, timestamp int64, skew time.Duration) bool {
	now := g.nowFunc()
	ahead := time.Unix(timestamp, 0).Sub(now)
	drift := ahead
	if drift < 0 {
		drift = -drift
	}
	if drift > skew {
		g.reject("skew", clientID, nonce).Dur("drift", drift).Msg("signed request outside clock skew")
		return false
	}

	// A future-dated timestamp stays acceptable until timestamp+skew.
	ttl := skew + max(ahead, 0)
	added, err := g.store.Add(ctx, Key(clientID, nonce), ttl)
	if err != nil {
		g.logger.Error().Err(err).Str("client_id", clientID).Msg("nonce store unavailable, rejecting request")
		g.metrics.ReplayRejected("store_error")
		return false
	}
	if !added {
		g.reject("replay", clientID, nonce).Msg("nonce replayed")
		return false
	}
	return true
}

func (g *Guard) reject(reason, clientID, nonce string) *zerolog.Event {
	g.metrics.ReplayRejected(reason)
	return g.logger.Warn().
		Str("reason", reason).
		Str("client_id", clientID).
		Str("nonce", nonce)
}

// Key is the nonce store key for a client's nonce. The client id is length
// prefixed so that no (client, nonce) pair can collide with another.
func Key(clientID, nonce string) string {
	return strconv.Itoa(len(clientID)) + ":" + clientID + ":" + nonce
}
