package grant_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/clients"
	fakeclientrepo "github.com/jrsteele09/go-auth-engine/clients/fakerepo"
	"github.com/jrsteele09/go-auth-engine/encryption"
	"github.com/jrsteele09/go-auth-engine/grant"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/principal"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/jrsteele09/go-auth-engine/token"
	tokenfakerepo "github.com/jrsteele09/go-auth-engine/token/repofake"
	"github.com/jrsteele09/go-auth-engine/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-engine/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID    = "app1"
	testRedirectURI = "https://cb"
	testUserID      = "alice"
	testPassword    = "s3cret-Passw0rd"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	ctx          context.Context
	clientRepo   *fakeclientrepo.FakeClientRepo
	userRepo     *fakeuserrepo.FakeUserRepo
	tokens       *token.Manager
	clientAuth   *auth.ClientAuthenticator
	service      *grant.Service
	clientSecret string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	ctx := context.Background()
	now := func() time.Time { return testNow }

	passwordHasher, err := hashing.NewPBKDF2(hashing.WithIterations(10))
	require.NoError(t, err)
	tokenHasher, err := hashing.NewBlake3()
	require.NoError(t, err)
	signer, err := signing.New(signing.ES256)
	require.NoError(t, err)
	cipher, err := encryption.New(encryption.WithKDFIterations(10))
	require.NoError(t, err)
	codec, err := principal.NewCodec(cipher)
	require.NoError(t, err)

	f := &testFixture{
		ctx:        ctx,
		clientRepo: fakeclientrepo.NewFakeClientRepo(),
		userRepo:   fakeuserrepo.NewFakeUserRepo(),
	}

	secret, secretHash, err := passwordHasher.CreateSecret(256)
	require.NoError(t, err)
	f.clientSecret = secret
	require.NoError(t, f.clientRepo.Upsert(ctx, &clients.Client{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ClientSecret: secretHash,
		Scopes:       []string{"read", "write"},
		Enabled:      true,
	}))
	passwordHash, err := passwordHasher.CreateHash(testPassword)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(ctx, &users.User{
		UserID:   testUserID,
		Email:    "alice@example.com",
		Password: passwordHash,
		Roles:    []string{"reader"},
		Enabled:  true,
	}))

	creds := auth.Credentials{
		Hasher: passwordHasher,
		Signer: signer,
		Guard:  replay.NewGuard(replay.NewMemoryStore(now), replay.WithNowFunc(now)),
	}
	authOptions := []auth.Option{auth.WithNowFunc(now), auth.WithLogger(zerolog.Nop())}
	f.clientAuth, err = auth.NewClientAuthenticator(f.clientRepo, creds, authOptions...)
	require.NoError(t, err)
	userAuth, err := auth.NewUserAuthenticator(f.userRepo, f.userRepo, f.clientRepo, creds, authOptions...)
	require.NoError(t, err)

	f.tokens, err = token.New(tokenfakerepo.NewFakeRepos(), tokenHasher, codec, token.WithNowFunc(now), token.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.service, err = grant.New(f.tokens, f.clientAuth, userAuth, f.clientRepo, f.userRepo,
		grant.WithNowFunc(now),
		grant.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return f
}

func (f *testFixture) client(t *testing.T) principal.Principal {
	t.Helper()
	p, err := f.clientAuth.AuthenticateClientSecret(f.ctx, testClientID, f.clientSecret)
	require.NoError(t, err)
	require.True(t, p.IsAuthenticated())
	return p
}

func (f *testFixture) user() principal.Principal {
	return principal.New(principal.MethodPassword,
		principal.NewClaim(principal.ClaimSubject, testUserID),
		principal.NewClaim(principal.ClaimEmail, "alice@example.com"),
	)
}

func (f *testFixture) accessPrincipal(t *testing.T, tok *oauth2.Token) principal.Principal {
	t.Helper()
	p, err := f.tokens.AuthenticateAccessToken(f.ctx, tok.AccessToken)
	require.NoError(t, err)
	require.True(t, p.IsAuthenticated())
	return p
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := setupTestFixture(t)

	code, err := f.service.Authorize(f.ctx, f.user(), testClientID, testRedirectURI, []string{"read"})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	tok, err := f.service.ExchangeAuthorizationCode(f.ctx, f.client(t), testRedirectURI, code)
	require.NoError(t, err)
	require.Equal(t, grant.TokenType, tok.TokenType)
	require.NotEmpty(t, tok.RefreshToken)
	require.Equal(t, testNow.Add(time.Hour), tok.Expiry)
	require.Equal(t, "read", tok.Extra("scope"))

	p := f.accessPrincipal(t, tok)
	require.Equal(t, testUserID, p.Subject())
	require.Equal(t, []string{"read"}, p.Scopes())
	clientID, _ := p.ClientID()
	require.Equal(t, testClientID, clientID)

	t.Run("code is single use", func(t *testing.T) {
		_, err := f.service.ExchangeAuthorizationCode(f.ctx, f.client(t), testRedirectURI, code)
		require.ErrorIs(t, err, grant.ErrInvalidGrant)
	})
}

func TestAuthorizeRejections(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("unknown redirect", func(t *testing.T) {
		_, err := f.service.Authorize(f.ctx, f.user(), testClientID, "https://evil", []string{"read"})
		require.ErrorIs(t, err, grant.ErrInvalidClient)
	})

	t.Run("scope not allowed for client", func(t *testing.T) {
		_, err := f.service.Authorize(f.ctx, f.user(), testClientID, testRedirectURI, []string{"admin"})
		require.ErrorIs(t, err, grant.ErrInvalidScope)
	})

	t.Run("anonymous user", func(t *testing.T) {
		_, err := f.service.Authorize(f.ctx, principal.Anonymous(), testClientID, testRedirectURI, []string{"read"})
		require.ErrorIs(t, err, token.ErrNotAuthenticated)
	})
}

func TestCodeIssuedToAnotherClient(t *testing.T) {
	f := setupTestFixture(t)
	code, err := f.service.Authorize(f.ctx, f.user(), testClientID, testRedirectURI, []string{"read"})
	require.NoError(t, err)

	other := principal.New(principal.MethodClientSecret,
		principal.NewClaim(principal.ClaimClientID, "app2"),
		principal.NewClaim(principal.ClaimRedirectURI, testRedirectURI),
	)
	_, err = f.service.ExchangeAuthorizationCode(f.ctx, other, testRedirectURI, code)
	require.ErrorIs(t, err, grant.ErrInvalidGrant)
}

func TestPasswordGrant(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.service.Password(f.ctx, f.client(t), testUserID, testPassword, "", []string{"read", "write"})
	require.NoError(t, err)
	require.NotEmpty(t, tok.RefreshToken)
	require.Equal(t, "read write", tok.Extra("scope"))

	p := f.accessPrincipal(t, tok)
	require.Equal(t, testUserID, p.Subject())
	require.True(t, p.HasClaim(principal.ClaimRole, "reader"))
	require.Equal(t, testRedirectURI, p.RedirectURI())

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.service.Password(f.ctx, f.client(t), testUserID, "nope", "", []string{"read"})
		require.ErrorIs(t, err, grant.ErrInvalidGrant)
	})

	t.Run("anonymous client", func(t *testing.T) {
		_, err := f.service.Password(f.ctx, principal.Anonymous(), testUserID, testPassword, "", []string{"read"})
		require.ErrorIs(t, err, grant.ErrInvalidClient)
	})
}

func TestClientCredentialsGrant(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.service.ClientCredentials(f.ctx, f.client(t), []string{"write"})
	require.NoError(t, err)
	require.Empty(t, tok.RefreshToken)

	p := f.accessPrincipal(t, tok)
	clientID, _ := p.ClientID()
	require.Equal(t, testClientID, clientID)
	require.Empty(t, p.Subject())
	require.Equal(t, []string{"write"}, p.Scopes())
}

func TestRefreshGrant(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.service.Password(f.ctx, f.client(t), testUserID, testPassword, testRedirectURI, []string{"read"})
	require.NoError(t, err)

	// Profile changes made after issue show up in the refreshed token.
	user, err := f.userRepo.Get(f.ctx, testUserID)
	require.NoError(t, err)
	user.Roles = []string{"editor"}
	require.NoError(t, f.userRepo.Upsert(f.ctx, user))

	second, err := f.service.Refresh(f.ctx, f.client(t), testRedirectURI, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, "read", second.Extra("scope"))

	p := f.accessPrincipal(t, second)
	require.Equal(t, principal.MethodOAuth, p.AuthenticationMethod())
	require.True(t, p.HasClaim(principal.ClaimRole, "editor"))
	require.False(t, p.HasClaim(principal.ClaimRole, "reader"))
	require.Equal(t, []string{"read"}, p.Scopes())

	t.Run("the old access token was replaced", func(t *testing.T) {
		p, err := f.tokens.AuthenticateAccessToken(f.ctx, first.AccessToken)
		require.NoError(t, err)
		require.False(t, p.IsAuthenticated())
	})

	t.Run("refresh token is single use", func(t *testing.T) {
		_, err := f.service.Refresh(f.ctx, f.client(t), testRedirectURI, first.RefreshToken)
		require.ErrorIs(t, err, grant.ErrInvalidGrant)
	})

	t.Run("disabled user cannot refresh", func(t *testing.T) {
		user.Enabled = false
		require.NoError(t, f.userRepo.Upsert(f.ctx, user))
		_, err := f.service.Refresh(f.ctx, f.client(t), testRedirectURI, second.RefreshToken)
		require.ErrorIs(t, err, grant.ErrInvalidGrant)
	})
}

func TestTokenDispatch(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.service.Token(f.ctx, f.client(t), grant.TokenRequest{
		GrantType: grant.ClientCredentialsGrant,
		Scope:     grant.ParseScope("read  write"),
	})
	require.NoError(t, err)
	require.Equal(t, "read write", tok.Extra("scope"))

	_, err = f.service.Token(f.ctx, f.client(t), grant.TokenRequest{GrantType: "implicit"})
	require.ErrorIs(t, err, grant.ErrUnsupportedGrantType)
}

func TestNewValidation(t *testing.T) {
	f := setupTestFixture(t)
	_, err := grant.New(nil, f.clientAuth, nil, f.clientRepo, f.userRepo)
	require.Error(t, err)
}
