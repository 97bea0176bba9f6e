package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/digest"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/pkg/errors"
)

// ClientAuthenticator turns client credentials into principals. A failed
// check yields principal.Anonymous() with a nil error.
type ClientAuthenticator struct {
	clients clients.Repo
	creds   Credentials
	settings
}

func NewClientAuthenticator(repo clients.Repo, creds Credentials, options ...Option) (*ClientAuthenticator, error) {
	if repo == nil {
		return nil, errors.New("[NewClientAuthenticator] Clients repo is required")
	}
	if err := creds.validate("NewClientAuthenticator"); err != nil {
		return nil, err
	}
	return &ClientAuthenticator{
		clients:  repo,
		creds:    creds,
		settings: newSettings(options),
	}, nil
}

// AuthenticateClient checks that clientID is registered and enabled for
// exactly redirectURI. No secret is involved.
func (a *ClientAuthenticator) AuthenticateClient(ctx context.Context, clientID, redirectURI string) (principal.Principal, error) {
	if clientID == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "empty client id")
	}
	client, err := a.lookup(ctx, clientID, redirectURI)
	if err != nil || client == nil || client.RedirectURI != redirectURI {
		return a.fail(SchemeClient, err)
	}
	return a.succeed(ctx, SchemeClient, principal.MethodClient, client), nil
}

// AuthenticateClientSecret checks secret against every record of clientID.
// The first enabled record whose hash matches wins.
func (a *ClientAuthenticator) AuthenticateClientSecret(ctx context.Context, clientID, secret string) (principal.Principal, error) {
	if clientID == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "empty client id")
	}
	if secret == "" {
		return a.fail(SchemeClientSecret, nil)
	}

	candidates, err := a.clients.ListByClientID(ctx, clientID)
	if err != nil {
		return a.fail(SchemeClientSecret, err)
	}
	for _, client := range candidates {
		if !client.Enabled || client.ClientSecret == "" {
			continue
		}
		if a.creds.Hasher.ValidateHash(secret, client.ClientSecret) {
			return a.succeed(ctx, SchemeClientSecret, principal.MethodClientSecret, client), nil
		}
	}
	return a.fail(SchemeClientSecret, nil)
}

// AuthenticateClientSignature verifies d against the public key registered
// for its client and redirect uri, then spends its nonce.
func (a *ClientAuthenticator) AuthenticateClientSignature(ctx context.Context, d digest.Signature) (principal.Principal, error) {
	if d.ClientID == "" || d.Nonce == "" {
		return principal.Anonymous(), errors.Wrap(ErrInvalidArgument, "signature digest needs client_id and nonce")
	}

	client, err := a.lookup(ctx, d.ClientID, d.RedirectURI)
	if err != nil || client == nil || client.PublicKey == "" {
		return a.fail(SchemeClientSignature, err)
	}
	if !a.creds.Signer.ValidateSignature(d.CanonicalData(), d.Signature, client.PublicKey) {
		return a.fail(SchemeClientSignature, nil)
	}
	if !a.creds.Guard.Validate(ctx, d.ClientID, d.Nonce, d.Timestamp, a.skew) {
		return a.fail(SchemeClientSignature, nil)
	}
	return a.succeed(ctx, SchemeClientSignature, principal.MethodSignature, client), nil
}

func (a *ClientAuthenticator) lookup(ctx context.Context, clientID, redirectURI string) (*clients.Client, error) {
	return lookupClient(ctx, a.clients, clientID, redirectURI)
}

// lookupClient returns nil, nil for unknown or disabled clients.
func lookupClient(ctx context.Context, repo clients.Repo, clientID, redirectURI string) (*clients.Client, error) {
	client, err := repo.Get(ctx, clientID, redirectURI)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !client.Enabled {
		return nil, nil
	}
	return client, nil
}

func (a *ClientAuthenticator) succeed(ctx context.Context, scheme, method string, client *clients.Client) principal.Principal {
	a.metrics.CredentialAuthenticated(scheme, true)
	if err := a.clients.UpdateLastUsed(ctx, client.ClientID, client.RedirectURI, a.nowFunc()); err != nil {
		a.logger.Error().Err(err).Str("client_id", client.ClientID).Msg("failed to record client last use")
	}
	return principal.New(method,
		principal.NewClaim(principal.ClaimClientID, client.ClientID),
		principal.NewClaim(principal.ClaimRedirectURI, client.RedirectURI),
	)
}

func (a *ClientAuthenticator) fail(scheme string, err error) (principal.Principal, error) {
	a.metrics.CredentialAuthenticated(scheme, false)
	return principal.Anonymous(), err
}
