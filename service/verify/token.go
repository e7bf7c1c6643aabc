package verify

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// TokenIssuer mints session tokens attesting that an address passed
// signature verification. Tokens are HS256-signed with an operator secret.
// Nothing in this service consumes them yet; they are an output for callers
// that want to authorize follow-up requests.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates a TokenIssuer with the given signing secret.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret is required")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: "xamanlink",
	}, nil
}

// Issue signs a token binding the verified signer address.
func (t *TokenIssuer) Issue(address string) (string, error) {
	tok, err := jwt.NewBuilder().
		Issuer(t.issuer).
		Subject(address).
		IssuedAt(time.Now()).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Parse validates a previously issued token and returns the bound address.
func (t *TokenIssuer) Parse(token string) (string, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256(), t.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
