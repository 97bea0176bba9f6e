package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Provider generates key pairs and signs or verifies data with them. Keys and
// signatures travel as unpadded base64url strings.
type Provider interface {
	GenerateKeyPair() (privateKey string, publicKey string, err error)
	Sign(data, privateKey string) (string, error)
	ValidateSignature(data, signature, publicKey string) bool
}

// Algorithm names follow the JWS registry.
type Algorithm string

const (
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrInvalidKey           = errors.New("invalid key material")
)

var encoding = base64.RawURLEncoding

// Signer implements Provider for one algorithm.
type Signer struct {
	algorithm Algorithm
	method    jwt.SigningMethod
	rsaBits   int
	curve     elliptic.Curve
}

var _ Provider = (*Signer)(nil)

type Option func(*Signer)

// WithRSAKeyBits overrides the RSA modulus size used by GenerateKeyPair.
func WithRSAKeyBits(bits int) Option {
	return func(s *Signer) {
		s.rsaBits = bits
	}
}

func New(algorithm Algorithm, options ...Option) (*Signer, error) {
	s := &Signer{algorithm: algorithm}
	switch algorithm {
	case RS256:
		s.method, s.rsaBits = jwt.SigningMethodRS256, 2048
	case RS384:
		s.method, s.rsaBits = jwt.SigningMethodRS384, 3072
	case RS512:
		s.method, s.rsaBits = jwt.SigningMethodRS512, 4096
	case ES256:
		s.method, s.curve = jwt.SigningMethodES256, elliptic.P256()
	case ES384:
		s.method, s.curve = jwt.SigningMethodES384, elliptic.P384()
	case ES512:
		s.method, s.curve = jwt.SigningMethodES512, elliptic.P521()
	default:
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", algorithm)
	}

	for _, opt := range options {
		opt(s)
	}
	if s.curve == nil && s.rsaBits < 2048 {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "RSA keys below 2048 bits (%d)", s.rsaBits)
	}
	return s, nil
}

func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

func (s *Signer) GenerateKeyPair() (string, string, error) {
	var (
		private crypto.PrivateKey
		public  crypto.PublicKey
	)
	if s.curve != nil {
		key, err := ecdsa.GenerateKey(s.curve, rand.Reader)
		if err != nil {
			return "", "", errors.Wrap(err, "[Signer.GenerateKeyPair] ecdsa")
		}
		private, public = key, &key.PublicKey
	} else {
		key, err := rsa.GenerateKey(rand.Reader, s.rsaBits)
		if err != nil {
			return "", "", errors.Wrap(err, "[Signer.GenerateKeyPair] rsa")
		}
		private, public = key, &key.PublicKey
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return "", "", errors.Wrap(err, "[Signer.GenerateKeyPair] marshal private key")
	}
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return "", "", errors.Wrap(err, "[Signer.GenerateKeyPair] marshal public key")
	}
	return encoding.EncodeToString(privateDER), encoding.EncodeToString(publicDER), nil
}

// Sign fails when the private key does not decode or belongs to another
// algorithm family. Private keys come from this process, so that is a caller bug.
func (s *Signer) Sign(data, privateKey string) (string, error) {
	key, err := s.parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	sig, err := s.method.Sign(data, key)
	if err != nil {
		return "", errors.Wrap(err, "[Signer.Sign]")
	}
	return encoding.EncodeToString(sig), nil
}

// ValidateSignature returns false for any malformed input instead of an error;
// public keys and signatures are supplied by untrusted parties.
func (s *Signer) ValidateSignature(data, signature, publicKey string) bool {
	sig, err := encoding.DecodeString(signature)
	if err != nil || len(sig) == 0 {
		return false
	}
	der, err := encoding.DecodeString(publicKey)
	if err != nil {
		return false
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return false
	}
	return s.method.Verify(data, sig, key) == nil
}

func (s *Signer) parsePrivateKey(privateKey string) (crypto.PrivateKey, error) {
	der, err := encoding.DecodeString(privateKey)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, "private key is not base64url")
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, "private key is not PKCS#8")
	}

	switch key.(type) {
	case *ecdsa.PrivateKey:
		if s.curve == nil {
			return nil, errors.Wrapf(ErrInvalidKey, "ecdsa key cannot sign %s", s.algorithm)
		}
	case *rsa.PrivateKey:
		if s.curve != nil {
			return nil, errors.Wrapf(ErrInvalidKey, "rsa key cannot sign %s", s.algorithm)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "unsupported private key type %T", key)
	}
	return key, nil
}
