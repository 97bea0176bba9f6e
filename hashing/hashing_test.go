package hashing_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/stretchr/testify/require"
)

func testProviders(t *testing.T) map[string]hashing.Provider {
	t.Helper()

	pbkdf2Hasher, err := hashing.NewPBKDF2(hashing.WithIterations(1000))
	require.NoError(t, err)
	blake3Hasher, err := hashing.NewBlake3()
	require.NoError(t, err)

	bcryptHasher, err := hashing.NewBcrypt(4)
	require.NoError(t, err)

	return map[string]hashing.Provider{
		"pbkdf2": pbkdf2Hasher,
		"blake3": blake3Hasher,
		"bcrypt": bcryptHasher,
	}
}

func mutate(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestHashIntegrity(t *testing.T) {
	for name, provider := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			const text = "correct horse battery staple"

			hash, err := provider.CreateHash(text)
			require.NoError(t, err)
			require.True(t, provider.ValidateHash(text, hash))

			t.Run("mutated hash fails", func(t *testing.T) {
				for i := range hash {
					require.False(t, provider.ValidateHash(text, mutate(hash, i)), "position %d of %q", i, hash)
				}
			})

			t.Run("mutated text fails", func(t *testing.T) {
				for i := range text {
					require.False(t, provider.ValidateHash(mutate(text, i), hash), "position %d", i)
				}
			})

			t.Run("same text hashes differently", func(t *testing.T) {
				other, err := provider.CreateHash(text)
				require.NoError(t, err)
				require.NotEqual(t, hash, other)
				require.True(t, provider.ValidateHash(text, other))
			})
		})
	}
}

func TestValidateHashFailsClosed(t *testing.T) {
	hasher, err := hashing.NewBlake3()
	require.NoError(t, err)
	hash, err := hasher.CreateHash("secret")
	require.NoError(t, err)
	parts := strings.Split(hash, hashing.DefaultSeparator)
	require.Len(t, parts, 4)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"too few parts", strings.Join(parts[:3], "$")},
		{"too many parts", hash + "$extra"},
		{"wrong algorithm", strings.Join(append([]string{hashing.AlgorithmPBKDF2}, parts[1:]...), "$")},
		{"zero iterations", strings.Join([]string{parts[0], "0", parts[2], parts[3]}, "$")},
		{"negative iterations", strings.Join([]string{parts[0], "-1", parts[2], parts[3]}, "$")},
		{"padded iterations", strings.Join([]string{parts[0], "01", parts[2], parts[3]}, "$")},
		{"huge iterations", strings.Join([]string{parts[0], "99999999999", parts[2], parts[3]}, "$")},
		{"bad salt encoding", strings.Join([]string{parts[0], parts[1], "!!", parts[3]}, "$")},
		{"empty digest", strings.Join([]string{parts[0], parts[1], parts[2], ""}, "$")},
		{"truncated digest", strings.Join([]string{parts[0], parts[1], parts[2], parts[3][:20]}, "$")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, hasher.ValidateHash("secret", tt.hash))
		})
	}
}

func TestCustomSeparator(t *testing.T) {
	hasher, err := hashing.NewPBKDF2(hashing.WithIterations(10), hashing.WithSeparator("|"))
	require.NoError(t, err)

	hash, err := hasher.CreateHash("pw")
	require.NoError(t, err)
	require.Len(t, strings.Split(hash, "|"), 4)
	require.True(t, hasher.ValidateHash("pw", hash))

	other, err := hashing.NewPBKDF2(hashing.WithIterations(10))
	require.NoError(t, err)
	require.False(t, other.ValidateHash("pw", hash))
}

func TestEmbeddedIterationsAreUsed(t *testing.T) {
	creator, err := hashing.NewPBKDF2(hashing.WithIterations(50))
	require.NoError(t, err)
	verifier, err := hashing.NewPBKDF2(hashing.WithIterations(5000))
	require.NoError(t, err)

	hash, err := creator.CreateHash("pw")
	require.NoError(t, err)
	require.True(t, verifier.ValidateHash("pw", hash))
}

func TestConstructorValidation(t *testing.T) {
	for _, sep := range []string{"", "a", "-", "_", "9", "x$"} {
		_, err := hashing.NewBlake3(hashing.WithSeparator(sep))
		require.ErrorIs(t, err, hashing.ErrInvalidSeparator, "separator %q", sep)
	}

	_, err := hashing.NewPBKDF2(hashing.WithIterations(0))
	require.ErrorIs(t, err, hashing.ErrInvalidParameter)

	_, err = hashing.NewPBKDF2(hashing.WithSaltSize(4))
	require.ErrorIs(t, err, hashing.ErrInvalidParameter)

	_, err = hashing.NewBlake3(hashing.WithCharset("aa"))
	require.ErrorIs(t, err, hashing.ErrInvalidParameter)

	_, err = hashing.New("md5")
	require.ErrorIs(t, err, hashing.ErrInvalidParameter)

	h, err := hashing.New(hashing.AlgorithmBlake3)
	require.NoError(t, err)
	require.Equal(t, hashing.AlgorithmBlake3, h.Algorithm())
}

func TestCreateSecret(t *testing.T) {
	hasher, err := hashing.NewBlake3()
	require.NoError(t, err)

	t.Run("256 bits", func(t *testing.T) {
		secret, hash, err := hasher.CreateSecret(256)
		require.NoError(t, err)
		require.Len(t, secret, 43)
		require.True(t, hasher.ValidateHash(secret, hash))
		for _, c := range secret {
			require.True(t, strings.ContainsRune(hashing.DefaultCharset, c))
		}
	})

	t.Run("2048 bits", func(t *testing.T) {
		secret, hash, err := hasher.CreateSecret(2048)
		require.NoError(t, err)
		require.Len(t, secret, 342)
		require.True(t, hasher.ValidateHash(secret, hash))
	})

	t.Run("secrets are unique", func(t *testing.T) {
		seen := map[string]struct{}{}
		for i := 0; i < 100; i++ {
			secret, _, err := hasher.CreateSecret(128)
			require.NoError(t, err)
			_, dup := seen[secret]
			require.False(t, dup)
			seen[secret] = struct{}{}
		}
	})

	t.Run("non-positive entropy", func(t *testing.T) {
		_, _, err := hasher.CreateSecret(0)
		require.ErrorIs(t, err, hashing.ErrInvalidParameter)
	})
}

func TestGenerateSecretCharset(t *testing.T) {
	secret, err := hashing.GenerateSecret(64, "0123456789")
	require.NoError(t, err)
	require.Len(t, secret, hashing.SecretLength(64, "0123456789"))
	require.Equal(t, 20, len(secret))
	for _, c := range secret {
		require.True(t, c >= '0' && c <= '9')
	}
}

func TestBcrypt(t *testing.T) {
	hasher, err := hashing.NewBcrypt(4)
	require.NoError(t, err)

	hash, err := hasher.CreateHash("Password1")
	require.NoError(t, err)
	require.True(t, hasher.ValidateHash("Password1", hash))
	require.False(t, hasher.ValidateHash("Password2", hash))
	require.False(t, hasher.ValidateHash("Password1", "not-a-bcrypt-hash"))

	secret, secretHash, err := hasher.CreateSecret(256)
	require.NoError(t, err)
	require.True(t, hasher.ValidateHash(secret, secretHash))

	_, err = hashing.NewBcrypt(99)
	require.ErrorIs(t, err, hashing.ErrInvalidParameter)

	t.Run("every single character change fails", func(t *testing.T) {
		require.True(t, strings.HasPrefix(hash, hashing.BcryptPrefix))
		for i := range hash {
			for _, c := range []byte("A59./b+") {
				if hash[i] == c {
					continue
				}
				b := []byte(hash)
				b[i] = c
				require.False(t, hasher.ValidateHash("Password1", string(b)), "position %d set to %q in %q", i, c, hash)
			}
		}
	})

	t.Run("non canonical salt fails", func(t *testing.T) {
		// The last salt character carries four unused bits.
		const last = 7 + 21
		for _, c := range []byte("56789") {
			if hash[last] == c {
				continue
			}
			b := []byte(hash)
			b[last] = c
			require.False(t, hasher.ValidateHash("Password1", string(b)))
		}
	})
}

func TestMigrating(t *testing.T) {
	primary, err := hashing.NewPBKDF2(hashing.WithIterations(1000))
	require.NoError(t, err)
	legacy, err := hashing.NewBcrypt(4)
	require.NoError(t, err)
	hasher, err := hashing.NewMigrating(primary, legacy)
	require.NoError(t, err)

	hash, err := hasher.CreateHash("Password1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, hashing.AlgorithmPBKDF2))
	require.True(t, hasher.ValidateHash("Password1", hash))
	require.False(t, hasher.ValidateHash("Password2", hash))

	t.Run("bcrypt hashes still validate", func(t *testing.T) {
		old, err := legacy.CreateHash("Password1")
		require.NoError(t, err)
		require.True(t, hasher.ValidateHash("Password1", old))
		require.False(t, hasher.ValidateHash("Password2", old))
	})

	t.Run("constructor requires both providers", func(t *testing.T) {
		_, err := hashing.NewMigrating(nil, legacy)
		require.Error(t, err)
		_, err = hashing.NewMigrating(primary, nil)
		require.Error(t, err)
	})
}
