package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/razikuljoni/crud-express/pkg/middleware"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = 24 * time.Hour

const tokenIssuer = "crud-express"

// ErrInvalidToken is returned for any token that fails verification:
// malformed, badly signed, expired or missing required claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of a session token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   int    `json:"roleId"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens. It keeps no state
// besides the secret, so verification depends only on the token and the
// clock.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue returns a signed token for identity, valid for TokenTTL from now.
func (s *TokenService) Issue(identity middleware.Identity) (string, error) {
	now := s.now().UTC()
	claims := &Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
		RoleID:   identity.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its claims. Every failure wraps
// ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: inconsistent subject", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyIdentity adapts Verify to middleware.TokenVerifier.
func (s *TokenService) VerifyIdentity(token string) (*middleware.Identity, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		RoleID:   claims.RoleID,
	}, nil
}
