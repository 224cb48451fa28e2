package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail to parse or verify.
var ErrInvalidToken = errors.New("session: invalid token")

// Token is an authenticated-session token scoped to one firewall.
type Token struct {
	ID       string
	Firewall string
	Username string
	Roles    []string
	IssuedAt time.Time
}

// HasRole reports whether the token grants role.
func (t Token) HasRole(role string) bool {
	return slices.Contains(t.Roles, role)
}

type tokenClaims struct {
	Firewall string   `json:"firewall"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with an HS256 secret.
type Codec struct {
	secret []byte
	clock  Clock
	ids    IDGenerator
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTokenClock sets the clock used for IssuedAt.
func WithTokenClock(c Clock) CodecOption {
	return func(k *Codec) { k.clock = c }
}

// WithTokenIDs sets the token id source.
func WithTokenIDs(g IDGenerator) CodecOption {
	return func(k *Codec) { k.ids = g }
}

// NewCodec returns a codec signing with secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: empty token secret")
	}
	c := &Codec{secret: secret, clock: systemClock{}, ids: uuidGenerator{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewToken builds a token for user scoped to firewall.
func (c *Codec) NewToken(user User, firewall string) Token {
	return Token{
		ID:       c.ids.NewID(),
		Firewall: firewall,
		Username: user.Username(),
		Roles:    append([]string(nil), user.Roles()...),
		IssuedAt: c.clock.Now().UTC().Truncate(time.Second),
	}
}

// Encode serializes t as a signed JWT.
func (c *Codec) Encode(t Token) (string, error) {
	claims := tokenClaims{
		Firewall: t.Firewall,
		Roles:    t.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       t.ID,
			Subject:  t.Username,
			IssuedAt: jwt.NewNumericDate(t.IssuedAt),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Decode verifies and parses a token produced by Encode.
func (c *Codec) Decode(s string) (Token, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(s, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Firewall == "" || claims.Subject == "" {
		return Token{}, fmt.Errorf("%w: missing firewall or subject", ErrInvalidToken)
	}
	t := Token{
		ID:       claims.ID,
		Firewall: claims.Firewall,
		Username: claims.Subject,
		Roles:    claims.Roles,
	}
	if claims.IssuedAt != nil {
		t.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return t, nil
}

// Authenticate returns the token stored in sess for firewall.
func (c *Codec) Authenticate(sess *Session, firewall string) (Token, error) {
	raw, ok := sess.Get(SecurityKey(firewall))
	if !ok {
		return Token{}, fmt.Errorf("%w: no token for firewall %q", ErrInvalidToken, firewall)
	}
	t, err := c.Decode(raw)
	if err != nil {
		return Token{}, err
	}
	if t.Firewall != firewall {
		return Token{}, fmt.Errorf("%w: token scoped to %q, not %q", ErrInvalidToken, t.Firewall, firewall)
	}
	return t, nil
}
