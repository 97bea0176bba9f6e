package signing_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T, alg signing.Algorithm) *signing.Signer {
	t.Helper()
	var opts []signing.Option
	if alg == signing.RS384 || alg == signing.RS512 {
		opts = append(opts, signing.WithRSAKeyBits(2048))
	}
	s, err := signing.New(alg, opts...)
	require.NoError(t, err)
	return s
}

func TestSignatureIntegrity(t *testing.T) {
	algorithms := []signing.Algorithm{
		signing.RS256, signing.RS384, signing.RS512,
		signing.ES256, signing.ES384, signing.ES512,
	}

	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			s := newSigner(t, alg)
			require.Equal(t, alg, s.Algorithm())

			priv, pub, err := s.GenerateKeyPair()
			require.NoError(t, err)
			otherPriv, otherPub, err := s.GenerateKeyPair()
			require.NoError(t, err)

			data := "client_id=app1&redirect_uri=https://cb&timestamp=1700000000"
			sig, err := s.Sign(data, priv)
			require.NoError(t, err)

			require.True(t, s.ValidateSignature(data, sig, pub))
			require.False(t, s.ValidateSignature(data, sig, otherPub), "other key pair")
			require.False(t, s.ValidateSignature(data+"x", sig, pub), "mutated data")
			require.False(t, s.ValidateSignature(data[1:], sig, pub), "truncated data")

			otherSig, err := s.Sign(data, otherPriv)
			require.NoError(t, err)
			require.False(t, s.ValidateSignature(data, otherSig, pub))
		})
	}
}

func TestValidateSignatureMalformedInput(t *testing.T) {
	s := newSigner(t, signing.RS256)
	priv, pub, err := s.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := s.Sign("data", priv)
	require.NoError(t, err)

	tests := []struct {
		name      string
		signature string
		publicKey string
	}{
		{"garbage public key", sig, "not-a-key!!"},
		{"base64 but not DER", sig, "AAAA"},
		{"empty public key", sig, ""},
		{"private key as public key", sig, priv},
		{"garbage signature", "@@@", pub},
		{"empty signature", "", pub},
		{"short signature", "AAAA", pub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, s.ValidateSignature("data", tt.signature, tt.publicKey))
			})
		})
	}
}

func TestCrossFamilyKeys(t *testing.T) {
	rs := newSigner(t, signing.RS256)
	es := newSigner(t, signing.ES256)

	rsPriv, rsPub, err := rs.GenerateKeyPair()
	require.NoError(t, err)
	esPriv, esPub, err := es.GenerateKeyPair()
	require.NoError(t, err)

	_, err = rs.Sign("data", esPriv)
	require.ErrorIs(t, err, signing.ErrInvalidKey)
	_, err = es.Sign("data", rsPriv)
	require.ErrorIs(t, err, signing.ErrInvalidKey)

	sig, err := es.Sign("data", esPriv)
	require.NoError(t, err)
	require.False(t, rs.ValidateSignature("data", sig, esPub))
	require.False(t, es.ValidateSignature("data", sig, rsPub))
}

func TestSignRejectsMalformedPrivateKey(t *testing.T) {
	s := newSigner(t, signing.RS256)
	_, err := s.Sign("data", "%%%")
	require.ErrorIs(t, err, signing.ErrInvalidKey)
	_, err = s.Sign("data", "AAAA")
	require.ErrorIs(t, err, signing.ErrInvalidKey)
}

func TestNew(t *testing.T) {
	_, err := signing.New("HS256")
	require.ErrorIs(t, err, signing.ErrUnsupportedAlgorithm)

	_, err = signing.New(signing.RS256, signing.WithRSAKeyBits(1024))
	require.ErrorIs(t, err, signing.ErrUnsupportedAlgorithm)
}
