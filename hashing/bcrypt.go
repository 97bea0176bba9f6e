package hashing

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptPrefix starts every bcrypt hash this package creates or accepts.
	BcryptPrefix = "$2a$"

	bcryptHashLen = 60
	bcryptSaltLen = 22
)

// x/crypto ignores the unused low bits of the salt, so salts are checked
// against the strict form of bcrypt's own alphabet.
var bcryptSaltEncoding = base64.NewEncoding("./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789").
	WithPadding(base64.NoPadding).
	Strict()

// Bcrypt satisfies Provider with the standard bcrypt encoding, which already
// embeds its cost and salt. Inputs are limited to 72 bytes, so it suits
// passwords but not long token secrets.
type Bcrypt struct {
	cost    int
	charset string
}

var _ Provider = (*Bcrypt)(nil)

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.Wrapf(ErrInvalidParameter, "bcrypt cost %d out of range", cost)
	}
	return &Bcrypt{cost: cost, charset: DefaultCharset}, nil
}

func (b *Bcrypt) CreateHash(text string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(text), b.cost)
	if err != nil {
		return "", errors.Wrap(err, "[Bcrypt.CreateHash]")
	}
	return string(bytes), nil
}

func (b *Bcrypt) CreateSecret(entropyBits int) (string, string, error) {
	secret, err := GenerateSecret(entropyBits, b.charset)
	if err != nil {
		return "", "", err
	}
	hash, err := b.CreateHash(secret)
	if err != nil {
		return "", "", err
	}
	return secret, hash, nil
}

func (b *Bcrypt) ValidateHash(text, hash string) bool {
	if !canonicalBcrypt(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(text)) == nil
}

// canonicalBcrypt accepts only "$2a$<cost:2>$<salt:22><digest:31>" with a
// salt that re-encodes to itself.
func canonicalBcrypt(hash string) bool {
	if len(hash) != bcryptHashLen || !strings.HasPrefix(hash, BcryptPrefix) || hash[6] != '$' {
		return false
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || fmt.Sprintf("%02d", cost) != hash[4:6] {
		return false
	}
	_, err = bcryptSaltEncoding.DecodeString(hash[7 : 7+bcryptSaltLen])
	return err == nil
}

// Migrating creates hashes with a primary Provider and still validates
// bcrypt hashes carried over from older deployments.
type Migrating struct {
	primary Provider
	legacy  *Bcrypt
}

var _ Provider = (*Migrating)(nil)

func NewMigrating(primary Provider, legacy *Bcrypt) (*Migrating, error) {
	if primary == nil {
		return nil, errors.New("[hashing.NewMigrating] primary provider is required")
	}
	if legacy == nil {
		return nil, errors.New("[hashing.NewMigrating] legacy bcrypt provider is required")
	}
	return &Migrating{primary: primary, legacy: legacy}, nil
}

func (m *Migrating) CreateHash(text string) (string, error) {
	return m.primary.CreateHash(text)
}

func (m *Migrating) CreateSecret(entropyBits int) (string, string, error) {
	return m.primary.CreateSecret(entropyBits)
}

// ValidateHash routes hashes starting with "$2" to bcrypt.
func (m *Migrating) ValidateHash(text, hash string) bool {
	if strings.HasPrefix(hash, "$2") {
		return m.legacy.ValidateHash(text, hash)
	}
	return m.primary.ValidateHash(text, hash)
}
