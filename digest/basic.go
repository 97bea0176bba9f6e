package digest

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedDigest is returned when a presented credential does not parse.
var ErrMalformedDigest = errors.New("malformed digest")

const (
	basicScheme     = "Basic "
	signatureScheme = "Signature "
)

// Basic is a user id and password. Clients that cannot send their own
// credentials alongside the user's fold client_id and redirect_uri into the
// password as a form-encoded string.
type Basic struct {
	UserID      string
	Password    string
	ClientID    string
	RedirectURI string
}

// ParseBasicHeader parses an Authorization header value of the form
// "Basic base64(userId:password)".
func ParseBasicHeader(header string) (Basic, error) {
	if len(header) < len(basicScheme) || !strings.EqualFold(header[:len(basicScheme)], basicScheme) {
		return Basic{}, errors.Wrap(ErrMalformedDigest, "missing Basic scheme")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(basicScheme):]))
	if err != nil {
		return Basic{}, errors.Wrap(ErrMalformedDigest, "credentials are not base64")
	}
	userID, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Basic{}, errors.Wrap(ErrMalformedDigest, "credentials lack a ':' separator")
	}
	return ParseBasic(userID, password)
}

// ParseBasic unpacks an embedded client_id/redirect_uri/password form when the
// password carries one.
func ParseBasic(userID, password string) (Basic, error) {
	if userID == "" {
		return Basic{}, errors.Wrap(ErrMalformedDigest, "empty user id")
	}
	d := Basic{UserID: userID, Password: password}

	if !strings.Contains(password, "password=") {
		return d, nil
	}
	values, err := url.ParseQuery(password)
	if err != nil || !values.Has("password") {
		return d, nil
	}
	for _, key := range []string{"password", "client_id", "redirect_uri"} {
		if len(values[key]) > 1 {
			return Basic{}, errors.Wrapf(ErrMalformedDigest, "duplicate %s", key)
		}
	}
	d.Password = values.Get("password")
	d.ClientID = values.Get("client_id")
	d.RedirectURI = values.Get("redirect_uri")
	return d, nil
}

// EncodePassword builds the form-encoded password that ParseBasic unpacks.
func EncodePassword(clientID, redirectURI, password string) string {
	values := url.Values{}
	values.Set("client_id", clientID)
	values.Set("redirect_uri", redirectURI)
	values.Set("password", password)
	return values.Encode()
}

// Header renders the digest as an Authorization header value.
func (d Basic) Header() string {
	password := d.Password
	if d.ClientID != "" || d.RedirectURI != "" {
		password = EncodePassword(d.ClientID, d.RedirectURI, d.Password)
	}
	return basicScheme + base64.StdEncoding.EncodeToString([]byte(d.UserID+":"+password))
}
