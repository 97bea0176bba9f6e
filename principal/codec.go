package principal

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/jrsteele09/go-auth-engine/encryption"
	"github.com/pkg/errors"
)

// ErrInvalidTicket is returned when a ticket cannot be decrypted or decoded.
var ErrInvalidTicket = errors.New("invalid ticket")

const ticketVersion = 1

type ticketDocument struct {
	Version       int         `cbor:"v"`
	Method        string      `cbor:"m"`
	Authenticated bool        `cbor:"a"`
	Claims        [][2]string `cbor:"c"`
}

// Codec turns principals into encrypted tickets and back.
type Codec struct {
	cipher encryption.Provider
	enc    cbor.EncMode
	dec    cbor.DecMode
}

func NewCodec(cipher encryption.Provider) (*Codec, error) {
	if cipher == nil {
		return nil, errors.New("[principal.NewCodec] cipher is required")
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "[principal.NewCodec] cbor encoder")
	}
	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, errors.Wrap(err, "[principal.NewCodec] cbor decoder")
	}
	return &Codec{cipher: cipher, enc: enc, dec: dec}, nil
}

// Create is New, exposed on the codec for callers that only hold a Codec.
func (c *Codec) Create(method string, claims ...Claim) Principal {
	return New(method, claims...)
}

func (c *Codec) Encrypt(p Principal, passphrase string) (string, error) {
	doc := ticketDocument{
		Version:       ticketVersion,
		Method:        p.AuthenticationMethod(),
		Authenticated: p.authenticated,
		Claims:        make([][2]string, 0, len(p.claims)),
	}
	for _, claim := range p.claims {
		doc.Claims = append(doc.Claims, [2]string{claim.Type, claim.Value})
	}

	payload, err := c.enc.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encrypt] encoding principal")
	}
	ticket, err := c.cipher.Encrypt(payload, passphrase)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encrypt]")
	}
	return ticket, nil
}

func (c *Codec) Decrypt(ticket, passphrase string) (Principal, error) {
	payload, err := c.cipher.Decrypt(ticket, passphrase)
	if err != nil {
		return Anonymous(), errors.Wrap(ErrInvalidTicket, err.Error())
	}

	var doc ticketDocument
	if err := c.dec.Unmarshal(payload, &doc); err != nil {
		return Anonymous(), errors.Wrapf(ErrInvalidTicket, "decoding payload: %v", err)
	}
	if doc.Version != ticketVersion {
		return Anonymous(), errors.Wrapf(ErrInvalidTicket, "unsupported ticket version %d", doc.Version)
	}

	claims := make([]Claim, 0, len(doc.Claims))
	for _, pair := range doc.Claims {
		claims = append(claims, Claim{Type: pair[0], Value: pair[1]})
	}
	p := Principal{claims: claims, authenticated: doc.Authenticated}
	if p.AuthenticationMethod() != doc.Method {
		return Anonymous(), errors.Wrapf(ErrInvalidTicket, "method %q does not match amr claim", doc.Method)
	}
	return p, nil
}
