package auth

import (
	"time"

	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidArgument marks structurally invalid input, such as a signature
// digest without a client id. Credential mismatches are never errors.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultSkew is the clock tolerance for signed requests.
const DefaultSkew = 2 * time.Minute

// Scheme labels used for metrics.
const (
	SchemeClient          = "client"
	SchemeClientSecret    = "client_secret"
	SchemeClientSignature = "client_signature"
	SchemeUserPassword    = "user_password"
	SchemeUserSignature   = "user_signature"
	SchemeUserAPIKey      = "user_api_key"
)

// Credentials holds the crypto services shared by both authenticators.
type Credentials struct {
	Hasher hashing.Provider // Verifies stored secret and password hashes
	Signer signing.Provider // Verifies signature digests and API keys
	Guard  *replay.Guard    // Rejects replayed signature digests
}

func (c Credentials) validate(caller string) error {
	if c.Hasher == nil {
		return errors.Errorf("[%s] hasher is required", caller)
	}
	if c.Signer == nil {
		return errors.Errorf("[%s] signer is required", caller)
	}
	if c.Guard == nil {
		return errors.Errorf("[%s] replay guard is required", caller)
	}
	return nil
}

type settings struct {
	skew    time.Duration
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

type Option func(*settings)

// WithSkew sets the clock tolerance and nonce lifetime for signed requests.
func WithSkew(skew time.Duration) Option {
	return func(s *settings) {
		s.skew = skew
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *settings) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *settings) {
		s.metrics = recorder
	}
}

func newSettings(options []Option) settings {
	s := settings{
		skew:    DefaultSkew,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}
