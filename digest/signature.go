package digest

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	keyUserID      = "user_id"
	keyClientID    = "client_id"
	keyRedirectURI = "redirect_uri"
	keyRequestURL  = "request_url"
	keyTimestamp   = "timestamp"
	keyNonce       = "nonce"
	keySignature   = "signature"
)

// Signature is a per-request signed credential. The signer signs
// CanonicalData with its private key.
type Signature struct {
	UserID      string
	ClientID    string
	RedirectURI string
	RequestURL  string
	Timestamp   int64 // unix seconds
	Nonce       string
	Signature   string
}

// Signer is the part of signing.Provider needed to produce a digest.
type Signer interface {
	Sign(data, privateKey string) (string, error)
}

// ParseSignature parses "key=value,key=value" pairs, with or without a leading
// "Signature " scheme. Values are query-escaped.
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(signatureScheme) && strings.EqualFold(s[:len(signatureScheme)], signatureScheme) {
		s = strings.TrimSpace(s[len(signatureScheme):])
	}
	if s == "" {
		return Signature{}, errors.Wrap(ErrMalformedDigest, "empty signature digest")
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return Signature{}, errors.Wrapf(ErrMalformedDigest, "field %q is not key=value", pair)
		}
		if _, dup := fields[key]; dup {
			return Signature{}, errors.Wrapf(ErrMalformedDigest, "duplicate field %q", key)
		}
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return Signature{}, errors.Wrapf(ErrMalformedDigest, "field %q is badly escaped", key)
		}
		fields[key] = unescaped
	}

	for _, required := range []string{keyClientID, keyTimestamp, keyNonce, keySignature} {
		if fields[required] == "" {
			return Signature{}, errors.Wrapf(ErrMalformedDigest, "missing %s", required)
		}
	}
	timestamp, err := strconv.ParseInt(fields[keyTimestamp], 10, 64)
	if err != nil {
		return Signature{}, errors.Wrapf(ErrMalformedDigest, "timestamp %q is not an integer", fields[keyTimestamp])
	}

	return Signature{
		UserID:      fields[keyUserID],
		ClientID:    fields[keyClientID],
		RedirectURI: fields[keyRedirectURI],
		RequestURL:  fields[keyRequestURL],
		Timestamp:   timestamp,
		Nonce:       fields[keyNonce],
		Signature:   fields[keySignature],
	}, nil
}

// CanonicalData is the exact string that gets signed. Field order is fixed,
// values are query escaped, absent fields render as empty values, and user_id
// is only appended for user-level requests.
func (d Signature) CanonicalData() string {
	var b strings.Builder
	b.WriteString(keyClientID + "=" + url.QueryEscape(d.ClientID))
	b.WriteString("&" + keyRedirectURI + "=" + url.QueryEscape(d.RedirectURI))
	b.WriteString("&" + keyRequestURL + "=" + url.QueryEscape(d.RequestURL))
	b.WriteString("&" + keyTimestamp + "=" + strconv.FormatInt(d.Timestamp, 10))
	b.WriteString("&" + keyNonce + "=" + url.QueryEscape(d.Nonce))
	if d.UserID != "" {
		b.WriteString("&" + keyUserID + "=" + url.QueryEscape(d.UserID))
	}
	return b.String()
}

// Sign returns a copy of d carrying a signature over its canonical data.
func (d Signature) Sign(signer Signer, privateKey string) (Signature, error) {
	sig, err := signer.Sign(d.CanonicalData(), privateKey)
	if err != nil {
		return Signature{}, errors.Wrap(err, "[digest.Sign]")
	}
	d.Signature = sig
	return d, nil
}

// String renders the wire form accepted by ParseSignature.
func (d Signature) String() string {
	pairs := []string{
		keyClientID + "=" + url.QueryEscape(d.ClientID),
		keyRedirectURI + "=" + url.QueryEscape(d.RedirectURI),
		keyRequestURL + "=" + url.QueryEscape(d.RequestURL),
		keyTimestamp + "=" + strconv.FormatInt(d.Timestamp, 10),
		keyNonce + "=" + url.QueryEscape(d.Nonce),
		keySignature + "=" + url.QueryEscape(d.Signature),
	}
	if d.UserID != "" {
		pairs = append([]string{keyUserID + "=" + url.QueryEscape(d.UserID)}, pairs...)
	}
	return signatureScheme + strings.Join(pairs, ",")
}
