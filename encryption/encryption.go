package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Provider encrypts payloads under a passphrase. The passphrase is the only
// key material; nothing else has to be stored to decrypt.
type Provider interface {
	Encrypt(plaintext []byte, passphrase string) (string, error)
	Decrypt(ciphertext string, passphrase string) ([]byte, error)
}

// ErrCryptographic is returned for every decryption failure: wrong passphrase,
// tampered or truncated ciphertext, unknown format version.
var ErrCryptographic = errors.New("cryptographic error")

const (
	formatVersion byte = 1

	DefaultKDFIterations = 10000
	saltSize             = 16
	headerSize           = 1 + saltSize
	derivedSize          = chacha20poly1305.KeySize + chacha20poly1305.NonceSizeX
)

var encoding = base64.RawURLEncoding.Strict()

// PassphraseCipher derives a XChaCha20-Poly1305 key and nonce from the
// passphrase and a per-message random salt with PBKDF2-SHA256.
//
// Layout before base64url: version (1) | salt (16) | ciphertext | tag (16).
// The version byte is bound as additional data.
type PassphraseCipher struct {
	iterations int
}

var _ Provider = (*PassphraseCipher)(nil)

type Option func(*PassphraseCipher)

func WithKDFIterations(iterations int) Option {
	return func(c *PassphraseCipher) {
		c.iterations = iterations
	}
}

func New(options ...Option) (*PassphraseCipher, error) {
	c := &PassphraseCipher{iterations: DefaultKDFIterations}
	for _, opt := range options {
		opt(c)
	}
	if c.iterations < 1 {
		return nil, errors.Errorf("[encryption.New] kdf iterations must be positive, got %d", c.iterations)
	}
	return c, nil
}

func (c *PassphraseCipher) Encrypt(plaintext []byte, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.Wrap(ErrCryptographic, "empty passphrase")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "[PassphraseCipher.Encrypt] generating salt")
	}

	aead, nonce, err := c.derive(passphrase, salt)
	if err != nil {
		return "", err
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	out[0] = formatVersion
	copy(out[1:], salt)
	out = aead.Seal(out, nonce, plaintext, out[:1])

	return encoding.EncodeToString(out), nil
}

func (c *PassphraseCipher) Decrypt(ciphertext string, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.Wrap(ErrCryptographic, "empty passphrase")
	}

	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return nil, errors.Wrap(ErrCryptographic, "ciphertext is not base64url")
	}
	if len(raw) < headerSize+chacha20poly1305.Overhead {
		return nil, errors.Wrapf(ErrCryptographic, "ciphertext too short (%d bytes)", len(raw))
	}
	if raw[0] != formatVersion {
		return nil, errors.Wrapf(ErrCryptographic, "unsupported format version %d", raw[0])
	}

	aead, nonce, err := c.derive(passphrase, raw[1:headerSize])
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, raw[headerSize:], raw[:1])
	if err != nil {
		return nil, errors.Wrap(ErrCryptographic, "authentication failed")
	}
	return plaintext, nil
}

func (c *PassphraseCipher) derive(passphrase string, salt []byte) (cipher.AEAD, []byte, error) {
	material := pbkdf2.Key([]byte(passphrase), salt, c.iterations, derivedSize, sha256.New)
	aead, err := chacha20poly1305.NewX(material[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, nil, errors.Wrap(err, "[PassphraseCipher] creating AEAD")
	}
	return aead, material[chacha20poly1305.KeySize:], nil
}
