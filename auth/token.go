package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only error Verify returns. Malformed, re-signed and
// expired tokens all surface as ErrInvalidToken.
var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified bearer token asserts.
type Identity struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies stateless bearer tokens.
type TokenCodec interface {
	Issue(subject string, roles []string, now time.Time) (string, error)
	Verify(token string, now time.Time) (*Identity, error)
}

// CustomClaims embeds jwt.RegisteredClaims and adds the roles claim.
type CustomClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTCodec implements TokenCodec with HS256 JWTs.
type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTCodec creates a codec. The secret is copied so later mutation of the
// caller's slice cannot change the signing key.
func NewJWTCodec(secret []byte, issuer string, ttl time.Duration) (*JWTCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}
	return &JWTCodec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue signs a token for subject that expires at now plus the configured lifetime.
func (c *JWTCodec) Issue(subject string, roles []string, now time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	claims := &CustomClaims{
		Roles: append([]string{}, roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, the issuer and that now is before the expiry.
func (c *JWTCodec) Verify(tokenString string, now time.Time) (*Identity, error) {
	claims := &CustomClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	id := &Identity{
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id, nil
}
