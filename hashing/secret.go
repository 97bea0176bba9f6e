package hashing

import (
	"crypto/rand"
	"math"

	"github.com/pkg/errors"
)

// DefaultCharset is the URL-safe alphabet, six bits per character.
const DefaultCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// SecretLength is the number of characters from charset needed to carry entropyBits.
func SecretLength(entropyBits int, charset string) int {
	bitsPerChar := math.Log2(float64(len(charset)))
	return int(math.Ceil(float64(entropyBits) / bitsPerChar))
}

// GenerateSecret draws an opaque string carrying at least entropyBits of entropy
// from crypto/rand. Bytes that would bias the selection are rejected.
func GenerateSecret(entropyBits int, charset string) (string, error) {
	if entropyBits <= 0 {
		return "", errors.Wrapf(ErrInvalidParameter, "entropy bits %d must be positive", entropyBits)
	}
	if err := validCharset(charset); err != nil {
		return "", err
	}

	length := SecretLength(entropyBits, charset)
	n := len(charset)
	limit := 256 - (256 % n)

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+8)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "[GenerateSecret] reading random bytes")
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, charset[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func validCharset(charset string) error {
	if len(charset) < 2 || len(charset) > 256 {
		return errors.Wrap(ErrInvalidParameter, "charset must hold between 2 and 256 characters")
	}
	seen := make(map[byte]struct{}, len(charset))
	for i := 0; i < len(charset); i++ {
		if charset[i] >= 0x80 {
			return errors.Wrap(ErrInvalidParameter, "charset must be ASCII")
		}
		if _, dup := seen[charset[i]]; dup {
			return errors.Wrapf(ErrInvalidParameter, "charset repeats %q", charset[i])
		}
		seen[charset[i]] = struct{}{}
	}
	return nil
}
