package config

import "time"

const (
	KeyAuthCodeTimeout         = "auth_code_timeout"
	KeyAccessTokenExpiry       = "access_token_expiry"
	KeyRefreshTokenExpiry      = "refresh_token_expiry"
	KeyCodeEntropyBits         = "code_entropy_bits"
	KeyAccessTokenEntropyBits  = "access_token_entropy_bits"
	KeyRefreshTokenEntropyBits = "refresh_token_entropy_bits"
)

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetCodeEntropyBits() int
	GetAccessTokenEntropyBits() int
	GetRefreshTokenEntropyBits() int
}

type OAuth struct {
	src source
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetAuthCodeTimeout() time.Duration {
	return o.src.getDuration(KeyAuthCodeTimeout)
}

func (o OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return o.src.getDuration(KeyAccessTokenExpiry)
}

func (o OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return o.src.getDuration(KeyRefreshTokenExpiry)
}

func (o OAuth) GetCodeEntropyBits() int {
	return o.src.getInt(KeyCodeEntropyBits)
}

func (o OAuth) GetAccessTokenEntropyBits() int {
	return o.src.getInt(KeyAccessTokenEntropyBits)
}

func (o OAuth) GetRefreshTokenEntropyBits() int {
	return o.src.getInt(KeyRefreshTokenEntropyBits)
}
