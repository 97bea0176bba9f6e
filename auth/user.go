package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/digest"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// challengeBits is the entropy of the random challenge signed with a
// presented API key.
const challengeBits = 256

// UserAuthenticator turns user credentials into principals carrying the
// user's profile claims. A failed check yields principal.Anonymous().
type UserAuthenticator struct {
	users   users.Repo
	apiKeys users.APIKeyRepo
	clients clients.Repo
	creds   Credentials
	settings
}

func NewUserAuthenticator(userRepo users.Repo, apiKeyRepo users.APIKeyRepo, clientRepo clients.Repo, creds Credentials, options ...Option) (*UserAuthenticator, error) {
	if userRepo == nil {
		return nil, errors.New("[NewUserAuthenticator] Users repo is required")
	}
	if apiKeyRepo == nil {
		return nil, errors.New("[NewUserAuthenticator] API key repo is required")
	}
	if clientRepo == nil {
		return nil, errors.New("[NewUserAuthenticator] Clients repo is required")
	}
	if err := creds.validate("NewUserAuthenticator"); err != nil {
		return nil, err
	}
	return &UserAuthenticator{
		users:    userRepo,
		apiKeys:  apiKeyRepo,
		clients:  clientRepo,
		creds:    creds,
		settings: newSettings(options),
	}, nil
}

func (a *UserAuthenticator) AuthenticateUserPassword(ctx context.Context, userID, password string) (principal.Principal, error) {
	if userID == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "empty user id")
	}
	user, err := a.lookup(ctx, userID)
	if err != nil || user == nil || user.Password == "" {
		return a.fail(SchemeUserPassword, err)
	}
	if !a.creds.Hasher.ValidateHash(password, user.Password) {
		return a.fail(SchemeUserPassword, nil)
	}

	a.metrics.CredentialAuthenticated(SchemeUserPassword, true)
	if err := a.users.UpdateLastLogin(ctx, user.UserID, a.nowFunc()); err != nil {
		a.logger.Error().Err(err).Str("user_id", user.UserID).Msg("failed to record user login")
	}
	return principal.New(principal.MethodPassword, user.Claims()...), nil
}

// AuthenticateUserSignature verifies d against each of the user's API keys
// in turn, then spends the digest nonce. The client and redirect uri named
// in the digest must be a registered, enabled client and are carried into
// the principal.
func (a *UserAuthenticator) AuthenticateUserSignature(ctx context.Context, d digest.Signature) (principal.Principal, error) {
	if d.UserID == "" || d.ClientID == "" || d.Nonce == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "signature digest needs user_id, client_id and nonce")
	}
	user, keys, err := a.lookupKeys(ctx, d.UserID)
	if err != nil || user == nil {
		return a.fail(SchemeUserSignature, err)
	}

	data := d.CanonicalData()
	for _, key := range keys {
		if !a.creds.Signer.ValidateSignature(data, d.Signature, key.APIKey) {
			continue
		}
		client, err := lookupClient(ctx, a.clients, d.ClientID, d.RedirectURI)
		if err != nil || client == nil {
			return a.fail(SchemeUserSignature, err)
		}
		if !a.creds.Guard.Validate(ctx, d.ClientID, d.Nonce, d.Timestamp, a.skew) {
			return a.fail(SchemeUserSignature, nil)
		}
		p := a.succeedWithKey(ctx, SchemeUserSignature, user, key)
		p = p.WithClaims(principal.NewClaim(principal.ClaimClientID, client.ClientID))
		if client.RedirectURI != "" {
			p = p.WithClaims(principal.NewClaim(principal.ClaimRedirectURI, client.RedirectURI))
		}
		return p, nil
	}
	return a.fail(SchemeUserSignature, nil)
}

// AuthenticateUserAPIKey proves possession of privateKey by signing a fresh
// random challenge and checking it against each registered key. The first
// key that verifies wins.
func (a *UserAuthenticator) AuthenticateUserAPIKey(ctx context.Context, userID, privateKey string) (principal.Principal, error) {
	if userID == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "empty user id")
	}
	user, keys, err := a.lookupKeys(ctx, userID)
	if err != nil || user == nil {
		return a.fail(SchemeUserAPIKey, err)
	}

	challenge, err := hashing.GenerateSecret(challengeBits, hashing.DefaultCharset)
	if err != nil {
		return principal.Anonymous(), errors.Wrap(err, "[AuthenticateUserAPIKey] generate challenge")
	}
	signature, err := a.creds.Signer.Sign(challenge, privateKey)
	if err != nil {
		// The presented key is caller supplied, so an unusable key is a mismatch.
		a.logger.Debug().Err(err).Str("user_id", userID).Msg("presented api key cannot sign")
		return a.fail(SchemeUserAPIKey, nil)
	}
	for _, key := range keys {
		if a.creds.Signer.ValidateSignature(challenge, signature, key.APIKey) {
			return a.succeedWithKey(ctx, SchemeUserAPIKey, user, key), nil
		}
	}
	return a.fail(SchemeUserAPIKey, nil)
}

// lookup returns nil, nil for unknown or disabled users.
func (a *UserAuthenticator) lookup(ctx context.Context, userID string) (*users.User, error) {
	user, err := a.users.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, nil
	}
	return user, nil
}

func (a *UserAuthenticator) lookupKeys(ctx context.Context, userID string) (*users.User, []*users.APIKey, error) {
	user, err := a.lookup(ctx, userID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	keys, err := a.apiKeys.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, keys, nil
}

func (a *UserAuthenticator) succeedWithKey(ctx context.Context, scheme string, user *users.User, key *users.APIKey) principal.Principal {
	a.metrics.CredentialAuthenticated(scheme, true)
	if err := a.apiKeys.UpdateAPIKeyLastUsed(ctx, key.UserID, key.Name, a.nowFunc()); err != nil {
		a.logger.Error().Err(err).Str("user_id", key.UserID).Str("key", key.Name).Msg("failed to record api key use")
	}
	method := principal.MethodAPIKey
	if scheme == SchemeUserSignature {
		method = principal.MethodSignature
	}
	claims := append(user.Claims(), principal.NewClaim(principal.ClaimAPIKey, key.Name))
	return principal.New(method, claims...)
}

func (a *UserAuthenticator) fail(scheme string, err error) (principal.Principal, error) {
	a.metrics.CredentialAuthenticated(scheme, false)
	return principal.Anonymous(), err
}
