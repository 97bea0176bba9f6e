package principal

import "slices"

// Claim types carried by principals.
const (
	ClaimSubject     = "sub"
	ClaimClientID    = "client_id"
	ClaimRedirectURI = "redirect_uri"
	ClaimScope       = "scope"
	ClaimAuthMethod  = "amr"
	ClaimName        = "name"
	ClaimEmail       = "email"
	ClaimRole        = "role"
	ClaimAPIKey      = "api_key"
)

// Authentication methods recorded in the ClaimAuthMethod claim.
const (
	MethodPassword     = "pwd"
	MethodClientSecret = "client_secret"
	MethodSignature    = "signature"
	MethodAPIKey       = "api_key"
	MethodClient       = "client"
	MethodOAuth        = "oauth"
)

type Claim struct {
	Type  string
	Value string
}

func NewClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value}
}

// Principal is an immutable identity. Every "mutation" returns a new value
// with its own claim slice, so principals can be shared between goroutines.
type Principal struct {
	claims        []Claim
	authenticated bool
}

// Anonymous is the result of every failed authentication.
func Anonymous() Principal {
	return Principal{}
}

// New builds an authenticated principal. Any auth-method claims in claims are
// dropped and a single one for method is appended.
func New(method string, claims ...Claim) Principal {
	normalized := make([]Claim, 0, len(claims)+1)
	for _, c := range claims {
		if c.Type != ClaimAuthMethod {
			normalized = append(normalized, c)
		}
	}
	normalized = append(normalized, Claim{Type: ClaimAuthMethod, Value: method})
	return Principal{claims: normalized, authenticated: true}
}

func (p Principal) IsAuthenticated() bool {
	return p.authenticated
}

// Claims returns a copy of the ordered claim list.
func (p Principal) Claims() []Claim {
	return slices.Clone(p.claims)
}

func (p Principal) AuthenticationMethod() string {
	v, _ := p.FindFirst(ClaimAuthMethod)
	return v
}

func (p Principal) FindFirst(claimType string) (string, bool) {
	for _, c := range p.claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

func (p Principal) FindAll(claimType string) []string {
	var values []string
	for _, c := range p.claims {
		if c.Type == claimType {
			values = append(values, c.Value)
		}
	}
	return values
}

func (p Principal) HasClaim(claimType, value string) bool {
	for _, c := range p.claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

func (p Principal) Subject() string {
	v, _ := p.FindFirst(ClaimSubject)
	return v
}

func (p Principal) ClientID() (string, bool) {
	return p.FindFirst(ClaimClientID)
}

func (p Principal) RedirectURI() string {
	v, _ := p.FindFirst(ClaimRedirectURI)
	return v
}

func (p Principal) Scopes() []string {
	return p.FindAll(ClaimScope)
}

// WithClaims appends claims, keeping the authentication state.
func (p Principal) WithClaims(claims ...Claim) Principal {
	next := make([]Claim, 0, len(p.claims)+len(claims))
	next = append(next, p.claims...)
	next = append(next, claims...)
	return Principal{claims: next, authenticated: p.authenticated}
}

// Without drops every claim matching remove.
func (p Principal) Without(remove func(Claim) bool) Principal {
	next := make([]Claim, 0, len(p.claims))
	for _, c := range p.claims {
		if !remove(c) {
			next = append(next, c)
		}
	}
	return Principal{claims: next, authenticated: p.authenticated}
}

// WithoutType drops every claim of the given types.
func (p Principal) WithoutType(claimTypes ...string) Principal {
	return p.Without(func(c Claim) bool {
		return slices.Contains(claimTypes, c.Type)
	})
}

// Replace drops every claim of claimType and appends one claim per value.
func (p Principal) Replace(claimType string, values ...string) Principal {
	claims := make([]Claim, 0, len(values))
	for _, v := range values {
		claims = append(claims, Claim{Type: claimType, Value: v})
	}
	return p.WithoutType(claimType).WithClaims(claims...)
}

// ScopeClaims turns scope values into claims.
func ScopeClaims(scope []string) []Claim {
	claims := make([]Claim, 0, len(scope))
	for _, s := range scope {
		claims = append(claims, Claim{Type: ClaimScope, Value: s})
	}
	return claims
}
