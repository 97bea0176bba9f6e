package grant

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Service runs the grant flows. Client principals passed to it are the
// results of a ClientAuthenticator call made by the transport layer.
type Service struct {
	tokens     *token.Manager
	clientAuth *auth.ClientAuthenticator
	userAuth   *auth.UserAuthenticator
	clientRepo clients.Repo
	userRepo   users.Repo
	lifetimes  Lifetimes
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

type Option func(*Service)

func WithLifetimes(lifetimes Lifetimes) Option {
	return func(s *Service) {
		s.lifetimes = lifetimes
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(tokens *token.Manager, clientAuth *auth.ClientAuthenticator, userAuth *auth.UserAuthenticator, clientRepo clients.Repo, userRepo users.Repo, options ...Option) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("[grant.New] token manager is required")
	}
	if clientAuth == nil || userAuth == nil {
		return nil, errors.New("[grant.New] client and user authenticators are required")
	}
	if clientRepo == nil || userRepo == nil {
		return nil, errors.New("[grant.New] client and user repos are required")
	}
	s := &Service{
		tokens:     tokens,
		clientAuth: clientAuth,
		userAuth:   userAuth,
		clientRepo: clientRepo,
		userRepo:   userRepo,
		lifetimes:  DefaultLifetimes(),
		nowFunc:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Authorize issues an authorization code for an authenticated user on behalf
// of clientID. The client must be enabled for exactly redirectURI and allowed
// every requested scope.
func (s *Service) Authorize(ctx context.Context, user principal.Principal, clientID, redirectURI string, scope []string) (string, error) {
	client, err := s.clientAuth.AuthenticateClient(ctx, clientID, redirectURI)
	if err != nil {
		return "", err
	}
	if !client.IsAuthenticated() {
		return "", ErrInvalidClient
	}
	if err := s.checkScope(ctx, clientID, redirectURI, scope); err != nil {
		return "", err
	}

	code, err := s.tokens.CreateAuthorizationCode(ctx, withClient(user, client), s.lifetimes.AuthorizationCode, redirectURI, scope)
	if err != nil {
		return "", err
	}
	return code, nil
}

// ExchangeAuthorizationCode redeems a code for an access and refresh token.
// The code must have been issued to the same client.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, client principal.Principal, redirectURI, code string) (*oauth2.Token, error) {
	clientID, err := requireClient(client)
	if err != nil {
		return nil, err
	}
	p, err := s.tokens.AuthenticateAuthorizationCode(ctx, redirectURI, code)
	if err != nil {
		return nil, err
	}
	if !p.IsAuthenticated() {
		return nil, ErrInvalidGrant
	}
	if issuedTo, _ := p.ClientID(); issuedTo != clientID {
		s.logger.Warn().Str("client_id", clientID).Str("issued_to", issuedTo).Msg("authorization code presented by another client")
		return nil, ErrInvalidGrant
	}
	return s.issue(ctx, p, redirectURI, p.Scopes(), true)
}

// Password authenticates the user directly. redirectURI defaults to the one
// the client authenticated with.
func (s *Service) Password(ctx context.Context, client principal.Principal, userID, password, redirectURI string, scope []string) (*oauth2.Token, error) {
	clientID, err := requireClient(client)
	if err != nil {
		return nil, err
	}
	if redirectURI == "" {
		redirectURI = client.RedirectURI()
	}
	if err := s.checkScope(ctx, clientID, redirectURI, scope); err != nil {
		return nil, err
	}

	user, err := s.userAuth.AuthenticateUserPassword(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAuthenticated() {
		return nil, ErrInvalidGrant
	}
	return s.issue(ctx, withClient(user, client), redirectURI, scope, true)
}

// ClientCredentials issues an access token whose subject is the client. No
// refresh token is issued.
func (s *Service) ClientCredentials(ctx context.Context, client principal.Principal, scope []string) (*oauth2.Token, error) {
	clientID, err := requireClient(client)
	if err != nil {
		return nil, err
	}
	redirectURI := client.RedirectURI()
	if err := s.checkScope(ctx, clientID, redirectURI, scope); err != nil {
		return nil, err
	}
	return s.issue(ctx, client, redirectURI, scope, false)
}

// Refresh redeems a refresh token and rotates both tokens. Claims are rebuilt
// from the current user record, so a disabled or deleted user can no longer
// refresh and profile changes take effect.
func (s *Service) Refresh(ctx context.Context, client principal.Principal, redirectURI, refreshToken string) (*oauth2.Token, error) {
	clientID, err := requireClient(client)
	if err != nil {
		return nil, err
	}
	p, err := s.tokens.AuthenticateRefreshToken(ctx, clientID, redirectURI, refreshToken)
	if err != nil {
		return nil, err
	}
	if !p.IsAuthenticated() {
		return nil, ErrInvalidGrant
	}

	user, err := s.userRepo.Get(ctx, p.Subject())
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		s.logger.Info().Str("user_id", user.UserID).Msg("refresh refused for disabled user")
		return nil, ErrInvalidGrant
	}

	refreshed := principal.New(principal.MethodOAuth, user.Claims()...).WithClaims(
		principal.NewClaim(principal.ClaimClientID, clientID),
		principal.NewClaim(principal.ClaimRedirectURI, redirectURI),
	)
	return s.issue(ctx, refreshed, redirectURI, p.Scopes(), true)
}

// Token dispatches a token request on its grant type.
func (s *Service) Token(ctx context.Context, client principal.Principal, req TokenRequest) (*oauth2.Token, error) {
	switch req.GrantType {
	case AuthorizationCodeGrant:
		return s.ExchangeAuthorizationCode(ctx, client, req.RedirectURI, req.Code)
	case PasswordGrant:
		return s.Password(ctx, client, req.Username, req.Password, req.RedirectURI, req.Scope)
	case ClientCredentialsGrant:
		return s.ClientCredentials(ctx, client, req.Scope)
	case RefreshTokenGrant:
		return s.Refresh(ctx, client, req.RedirectURI, req.RefreshToken)
	default:
		return nil, errors.Wrapf(ErrUnsupportedGrantType, "%q", req.GrantType)
	}
}

func (s *Service) issue(ctx context.Context, p principal.Principal, redirectURI string, scope []string, withRefresh bool) (*oauth2.Token, error) {
	accessToken, err := s.tokens.CreateAccessToken(ctx, p, s.lifetimes.AccessToken, redirectURI, scope)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   TokenType,
		Expiry:      s.nowFunc().Add(s.lifetimes.AccessToken),
		ExpiresIn:   int64(s.lifetimes.AccessToken / time.Second),
	}
	if withRefresh {
		tok.RefreshToken, err = s.tokens.CreateRefreshToken(ctx, p, s.lifetimes.RefreshToken, redirectURI, scope)
		if err != nil {
			return nil, err
		}
	}
	return tok.WithExtra(map[string]any{"scope": strings.Join(scope, " ")}), nil
}

func (s *Service) checkScope(ctx context.Context, clientID, redirectURI string, scope []string) error {
	client, err := s.clientRepo.Get(ctx, clientID, redirectURI)
	if errors.Is(err, clients.ErrNotFound) {
		return ErrInvalidClient
	}
	if err != nil {
		return err
	}
	if err := client.ValidateScopes(scope); err != nil {
		return errors.Wrap(ErrInvalidScope, err.Error())
	}
	return nil
}

func requireClient(client principal.Principal) (string, error) {
	if !client.IsAuthenticated() {
		return "", ErrInvalidClient
	}
	clientID, ok := client.ClientID()
	if !ok {
		return "", ErrInvalidClient
	}
	return clientID, nil
}

// withClient replaces any client claims on p with those of client.
func withClient(p, client principal.Principal) principal.Principal {
	clientID, _ := client.ClientID()
	claims := []principal.Claim{principal.NewClaim(principal.ClaimClientID, clientID)}
	if redirectURI := client.RedirectURI(); redirectURI != "" {
		claims = append(claims, principal.NewClaim(principal.ClaimRedirectURI, redirectURI))
	}
	return p.WithoutType(principal.ClaimClientID, principal.ClaimRedirectURI).WithClaims(claims...)
}
