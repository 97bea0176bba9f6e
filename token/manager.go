package token

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotAuthenticated = errors.New("principal is not authenticated")
	ErrInvalidArgument  = errors.New("invalid argument")
)

const (
	DefaultCodeEntropyBits         = 256
	DefaultAccessTokenEntropyBits  = 2048
	DefaultRefreshTokenEntropyBits = 256
)

// Repos holds one repository per artifact kind.
type Repos struct {
	AuthorizationCodes Repo
	AccessTokens       Repo
	RefreshTokens      Repo
}

// Manager issues and validates authorization codes, access tokens and refresh
// tokens. Callers receive opaque secrets; storage only ever sees their hashes.
type Manager struct {
	repos   map[Kind]Repo
	hasher  hashing.Provider
	codec   *principal.Codec
	entropy map[Kind]int
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) ManagerOption {
	return func(m *Manager) {
		m.metrics = recorder
	}
}

// WithEntropyBits sets the secret sizes per kind. Zero keeps the default.
func WithEntropyBits(code, accessToken, refreshToken int) ManagerOption {
	return func(m *Manager) {
		for kind, bits := range map[Kind]int{
			KindAuthorizationCode: code,
			KindAccessToken:       accessToken,
			KindRefreshToken:      refreshToken,
		} {
			if bits > 0 {
				m.entropy[kind] = bits
			}
		}
	}
}

// New creates a Manager. hasher hashes token secrets and should be a cheap
// strategy such as hashing.NewBlake3.
func New(repos Repos, hasher hashing.Provider, codec *principal.Codec, options ...ManagerOption) (*Manager, error) {
	if repos.AuthorizationCodes == nil {
		return nil, errors.New("[token.New] AuthorizationCodes repo is required")
	}
	if repos.AccessTokens == nil {
		return nil, errors.New("[token.New] AccessTokens repo is required")
	}
	if repos.RefreshTokens == nil {
		return nil, errors.New("[token.New] RefreshTokens repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[token.New] hasher is required")
	}
	if codec == nil {
		return nil, errors.New("[token.New] codec is required")
	}

	m := &Manager{
		repos: map[Kind]Repo{
			KindAuthorizationCode: repos.AuthorizationCodes,
			KindAccessToken:       repos.AccessTokens,
			KindRefreshToken:      repos.RefreshTokens,
		},
		hasher: hasher,
		codec:  codec,
		entropy: map[Kind]int{
			KindAuthorizationCode: DefaultCodeEntropyBits,
			KindAccessToken:       DefaultAccessTokenEntropyBits,
			KindRefreshToken:      DefaultRefreshTokenEntropyBits,
		},
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// CreateAuthorizationCode returns a single-use code bound to redirectURI.
func (m *Manager) CreateAuthorizationCode(ctx context.Context, p principal.Principal, ttl time.Duration, redirectURI string, scope []string) (string, error) {
	return m.create(ctx, KindAuthorizationCode, p, ttl, redirectURI, scope, true)
}

// AuthenticateAuthorizationCode consumes code. A code that does not match,
// has expired or was already consumed yields an anonymous principal.
func (m *Manager) AuthenticateAuthorizationCode(ctx context.Context, redirectURI, code string) (principal.Principal, error) {
	return m.consume(ctx, KindAuthorizationCode, "", redirectURI, code)
}

// CreateAccessToken returns a bearer token that stays valid until it expires.
func (m *Manager) CreateAccessToken(ctx context.Context, p principal.Principal, ttl time.Duration, redirectURI string, scope []string) (string, error) {
	return m.create(ctx, KindAccessToken, p, ttl, redirectURI, scope, true)
}

// AuthenticateAccessToken resolves a bearer token without consuming it.
func (m *Manager) AuthenticateAccessToken(ctx context.Context, accessToken string) (principal.Principal, error) {
	const kind = KindAccessToken

	record, err := m.match(ctx, kind, "", accessToken, false)
	if err != nil {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultError)
		return principal.Anonymous(), err
	}
	if record == nil {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultFailure)
		return principal.Anonymous(), nil
	}
	return m.openTicket(kind, record, accessToken)
}

// CreateRefreshToken returns a single-use refresh token. No ticket is stored;
// redeeming the token yields only subject, client, redirect and scope claims.
func (m *Manager) CreateRefreshToken(ctx context.Context, p principal.Principal, ttl time.Duration, redirectURI string, scope []string) (string, error) {
	return m.create(ctx, KindRefreshToken, p, ttl, redirectURI, scope, false)
}

// AuthenticateRefreshToken consumes refreshToken when it was issued to
// clientID for redirectURI.
func (m *Manager) AuthenticateRefreshToken(ctx context.Context, clientID, redirectURI, refreshToken string) (principal.Principal, error) {
	return m.consume(ctx, KindRefreshToken, clientID, redirectURI, refreshToken)
}

// DeleteExpired removes expired records of every kind and returns the total.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	now := m.nowFunc()
	total := 0
	for _, kind := range Kinds {
		n, err := m.repos[kind].DeleteExpired(ctx, now)
		if err != nil {
			return total, err
		}
		m.metrics.ExpiredDeleted(string(kind), n)
		total += n
	}
	return total, nil
}

func (m *Manager) create(ctx context.Context, kind Kind, p principal.Principal, ttl time.Duration, redirectURI string, scope []string, withTicket bool) (string, error) {
	if !p.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	clientID, ok := p.ClientID()
	if !ok || clientID == "" {
		return "", errors.Wrapf(ErrInvalidArgument, "[Manager.Create %s] principal has no %s claim", kind, principal.ClaimClientID)
	}

	repo := m.repos[kind]
	now := m.nowFunc()

	expired, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		return "", err
	}
	if expired > 0 {
		m.logger.Debug().Str("kind", string(kind)).Int("count", expired).Msg("deleted expired records")
		m.metrics.ExpiredDeleted(string(kind), expired)
	}

	subject := p.Subject()
	if subject == "" {
		subject = clientID
	}
	if _, err := repo.DeleteByClientRedirectSubject(ctx, clientID, redirectURI, subject); err != nil {
		return "", err
	}

	secret, hash, err := m.hasher.CreateSecret(m.entropy[kind])
	if err != nil {
		return "", errors.Wrapf(err, "[Manager.Create %s] generating secret", kind)
	}

	record := &Record{
		ID:          uuid.NewString(),
		Kind:        kind,
		ClientID:    clientID,
		Subject:     subject,
		RedirectURI: redirectURI,
		Scope:       slices.Clone(scope),
		Hash:        hash,
		CreatedAt:   now,
		ValidTo:     now.Add(ttl),
	}
	if withTicket {
		ticket, err := m.codec.Encrypt(p.Replace(principal.ClaimScope, scope...), secret)
		if err != nil {
			return "", errors.Wrapf(err, "[Manager.Create %s] encrypting ticket", kind)
		}
		record.Ticket = ticket
	}

	if _, err := repo.Insert(ctx, record); err != nil {
		return "", err
	}
	m.metrics.TokenIssued(string(kind))
	return secret, nil
}

// consume validates and deletes a single-use code or refresh token. Only the
// caller whose DeleteByID removed the record succeeds.
func (m *Manager) consume(ctx context.Context, kind Kind, clientID, redirectURI, secret string) (principal.Principal, error) {
	record, err := m.match(ctx, kind, redirectURI, secret, true)
	if err != nil {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultError)
		return principal.Anonymous(), err
	}
	if record == nil {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultFailure)
		return principal.Anonymous(), nil
	}

	if kind == KindRefreshToken && (record.ClientID != clientID || record.RedirectURI != redirectURI) {
		m.logger.Warn().
			Str("client_id", clientID).
			Str("issued_to", record.ClientID).
			Msg("refresh token presented by a different client")
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultFailure)
		return principal.Anonymous(), nil
	}

	deleted, err := m.repos[kind].DeleteByID(ctx, record)
	if err != nil {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultError)
		return principal.Anonymous(), err
	}
	if !deleted {
		m.logger.Debug().Str("kind", string(kind)).Str("id", record.ID).Msg("record already consumed")
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultFailure)
		return principal.Anonymous(), nil
	}

	if kind == KindRefreshToken {
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultSuccess)
		claims := []principal.Claim{
			principal.NewClaim(principal.ClaimSubject, record.Subject),
			principal.NewClaim(principal.ClaimClientID, record.ClientID),
			principal.NewClaim(principal.ClaimRedirectURI, record.RedirectURI),
		}
		return principal.New(principal.MethodOAuth, append(claims, principal.ScopeClaims(record.Scope)...)...), nil
	}
	return m.openTicket(kind, record, secret)
}

// match returns the first unexpired candidate whose hash matches secret, or
// nil. With exactRedirect set, candidates must carry redirectURI exactly.
func (m *Manager) match(ctx context.Context, kind Kind, redirectURI, secret string, exactRedirect bool) (*Record, error) {
	if secret == "" {
		return nil, nil
	}
	now := m.nowFunc()
	candidates, err := m.repos[kind].GetCandidates(ctx, redirectURI, now)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if !candidate.IsValidAt(now) {
			continue
		}
		if exactRedirect && candidate.RedirectURI != redirectURI {
			continue
		}
		if m.hasher.ValidateHash(secret, candidate.Hash) {
			return candidate, nil
		}
	}
	return nil, nil
}

func (m *Manager) openTicket(kind Kind, record *Record, secret string) (principal.Principal, error) {
	p, err := m.codec.Decrypt(record.Ticket, secret)
	if err != nil {
		m.logger.Error().Err(err).Str("kind", string(kind)).Str("id", record.ID).Msg("hash matched but ticket did not decrypt")
		m.metrics.TokenAuthenticated(string(kind), metrics.ResultError)
		return principal.Anonymous(), err
	}
	m.metrics.TokenAuthenticated(string(kind), metrics.ResultSuccess)
	return principal.New(principal.MethodOAuth, p.Claims()...), nil
}
