package config

import "time"

const (
	KeyPasswordHashIterations = "password_hash_iterations"
	KeyTokenHashAlgorithm     = "token_hash_algorithm"
	KeyHashSeparator          = "hash_separator"
	KeyTicketKDFIterations    = "ticket_kdf_iterations"
	KeySignatureAlgorithm     = "signature_algorithm"
	KeyReplaySkew             = "replay_skew"
	KeyCleanupInterval        = "cleanup_interval"
)

type SecurityConfig interface {
	GetPasswordHashIterations() int
	GetTokenHashAlgorithm() string
	GetHashSeparator() string
	GetTicketKDFIterations() int
	GetSignatureAlgorithm() string
	GetReplaySkew() time.Duration
	GetCleanupInterval() time.Duration
}

type Security struct {
	src source
}

var _ SecurityConfig = Security{}

// GetPasswordHashIterations is the PBKDF2 work factor for passwords and
// client secrets.
func (s Security) GetPasswordHashIterations() int {
	return s.src.getInt(KeyPasswordHashIterations)
}

// GetTokenHashAlgorithm picks the hasher for issued tokens, blake3 or pbkdf2.
func (s Security) GetTokenHashAlgorithm() string {
	return s.src.getString(KeyTokenHashAlgorithm)
}

func (s Security) GetHashSeparator() string {
	return s.src.getString(KeyHashSeparator)
}

func (s Security) GetTicketKDFIterations() int {
	return s.src.getInt(KeyTicketKDFIterations)
}

func (s Security) GetSignatureAlgorithm() string {
	return s.src.getString(KeySignatureAlgorithm)
}

func (s Security) GetReplaySkew() time.Duration {
	return s.src.getDuration(KeyReplaySkew)
}

func (s Security) GetCleanupInterval() time.Duration {
	return s.src.getDuration(KeyCleanupInterval)
}
