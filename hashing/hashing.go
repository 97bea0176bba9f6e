package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/pbkdf2"
)

// Provider hashes secrets into self-describing strings and verifies them.
type Provider interface {
	CreateHash(text string) (string, error)
	CreateSecret(entropyBits int) (secret string, hash string, err error)
	ValidateHash(text, hash string) bool
}

const (
	AlgorithmPBKDF2 = "pbkdf2-sha256"
	AlgorithmBlake3 = "blake3"

	DefaultSeparator        = "$"
	DefaultPBKDF2Iterations = 210000
	DefaultSaltSize         = 16

	maxIterations = 10_000_000
	digestSize    = 32
	hashParts     = 4
)

var (
	ErrInvalidSeparator = errors.New("separator must be non-empty and outside the base64url alphabet")
	ErrInvalidParameter = errors.New("invalid hash parameter")
)

var encoding = base64.RawURLEncoding.Strict()

type algorithm interface {
	id() string
	sum(text, salt []byte, iterations int) []byte
}

type pbkdf2SHA256 struct{}

func (pbkdf2SHA256) id() string { return AlgorithmPBKDF2 }

func (pbkdf2SHA256) sum(text, salt []byte, iterations int) []byte {
	return pbkdf2.Key(text, salt, iterations, digestSize, sha256.New)
}

type blake3Salted struct{}

func (blake3Salted) id() string { return AlgorithmBlake3 }

// sum chains the salted hash: d0 = H(salt|text), dn = H(salt|dn-1).
func (blake3Salted) sum(text, salt []byte, iterations int) []byte {
	h := blake3.New()
	_, _ = h.Write(salt)
	_, _ = h.Write(text)
	digest := h.Sum(nil)
	for i := 1; i < iterations; i++ {
		h.Reset()
		_, _ = h.Write(salt)
		_, _ = h.Write(digest)
		digest = h.Sum(nil)
	}
	return digest[:digestSize]
}

// Hasher implements Provider over a salted, iterated digest algorithm.
type Hasher struct {
	alg        algorithm
	iterations int
	saltSize   int
	separator  string
	charset    string
}

var _ Provider = (*Hasher)(nil)

type Option func(*Hasher)

func WithIterations(iterations int) Option {
	return func(h *Hasher) {
		h.iterations = iterations
	}
}

func WithSaltSize(size int) Option {
	return func(h *Hasher) {
		h.saltSize = size
	}
}

func WithSeparator(separator string) Option {
	return func(h *Hasher) {
		h.separator = separator
	}
}

// WithCharset sets the alphabet that CreateSecret draws from.
func WithCharset(charset string) Option {
	return func(h *Hasher) {
		h.charset = charset
	}
}

// NewPBKDF2 returns the expensive strategy, meant for passwords and client secrets.
func NewPBKDF2(options ...Option) (*Hasher, error) {
	return newHasher(pbkdf2SHA256{}, DefaultPBKDF2Iterations, options...)
}

// NewBlake3 returns the cheap strategy, meant for high-entropy token secrets.
func NewBlake3(options ...Option) (*Hasher, error) {
	return newHasher(blake3Salted{}, 1, options...)
}

// New returns the strategy registered under algorithm.
func New(algorithm string, options ...Option) (*Hasher, error) {
	switch algorithm {
	case AlgorithmPBKDF2:
		return NewPBKDF2(options...)
	case AlgorithmBlake3:
		return NewBlake3(options...)
	default:
		return nil, errors.Wrapf(ErrInvalidParameter, "unknown hash algorithm %q", algorithm)
	}
}

func newHasher(alg algorithm, iterations int, options ...Option) (*Hasher, error) {
	h := &Hasher{
		alg:        alg,
		iterations: iterations,
		saltSize:   DefaultSaltSize,
		separator:  DefaultSeparator,
		charset:    DefaultCharset,
	}
	for _, opt := range options {
		opt(h)
	}

	if !validSeparator(h.separator) {
		return nil, ErrInvalidSeparator
	}
	if h.iterations < 1 || h.iterations > maxIterations {
		return nil, errors.Wrapf(ErrInvalidParameter, "iterations %d out of range", h.iterations)
	}
	if h.saltSize < 8 {
		return nil, errors.Wrapf(ErrInvalidParameter, "salt size %d too small", h.saltSize)
	}
	if err := validCharset(h.charset); err != nil {
		return nil, err
	}
	return h, nil
}

// Algorithm returns the identifier written into every hash this Hasher creates.
func (h *Hasher) Algorithm() string {
	return h.alg.id()
}

func (h *Hasher) CreateHash(text string) (string, error) {
	salt := make([]byte, h.saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "[Hasher.CreateHash] generating salt")
	}
	digest := h.alg.sum([]byte(text), salt, h.iterations)

	return strings.Join([]string{
		h.alg.id(),
		strconv.Itoa(h.iterations),
		encoding.EncodeToString(salt),
		encoding.EncodeToString(digest),
	}, h.separator), nil
}

func (h *Hasher) CreateSecret(entropyBits int) (string, string, error) {
	secret, err := GenerateSecret(entropyBits, h.charset)
	if err != nil {
		return "", "", err
	}
	hash, err := h.CreateHash(secret)
	if err != nil {
		return "", "", err
	}
	return secret, hash, nil
}

// ValidateHash recomputes the digest with the parameters embedded in hash.
// Any hash that does not parse exactly is rejected.
func (h *Hasher) ValidateHash(text, hash string) bool {
	parts := strings.Split(hash, h.separator)
	if len(parts) != hashParts {
		return false
	}
	if parts[0] != h.alg.id() {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 || iterations > maxIterations {
		return false
	}
	if strconv.Itoa(iterations) != parts[1] {
		return false
	}

	salt, err := encoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := encoding.DecodeString(parts[3])
	if err != nil {
		return false
	}

	return constantTimeEqual(h.alg.sum([]byte(text), salt, iterations), expected)
}

// constantTimeEqual compares content and length without an early exit.
func constantTimeEqual(a, b []byte) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var diff byte
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		diff |= x ^ y
	}
	return subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))&subtle.ConstantTimeByteEq(diff, 0) == 1
}

func validSeparator(separator string) bool {
	if separator == "" {
		return false
	}
	for _, r := range separator {
		if isBase64URL(r) {
			return false
		}
	}
	return true
}

func isBase64URL(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
