package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

// TokenVerifier checks a bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(tokenString string) (types.Claims, error)
}

// TokenIssuer signs an identity into a bearer token.
type TokenIssuer interface {
	Issue(claims types.Claims) (string, error)
}

var (
	_ TokenVerifier = (*TokenService)(nil)
	_ TokenIssuer   = (*TokenService)(nil)
)

// tokenClaims is the wire form of a token. Identity fields are bound by name.
type tokenClaims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens with a single server secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService. A ttl of zero issues tokens with no
// exp claim, which never expire.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) Issue(claims types.Claims) (string, error) {
	tc := tokenClaims{
		Email:     claims.Email,
		Username:  claims.Username,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}
	if s.ttl > 0 {
		now := s.now()
		tc.IssuedAt = jwt.NewNumericDate(now)
		tc.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its claims, or an *types.AuthError
// naming why it was rejected.
func (s *TokenService) Verify(tokenString string) (types.Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &tc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return types.Claims{}, types.NewAuthError(reasonFor(err))
	}
	if tc.Email == "" || tc.Username == "" {
		return types.Claims{}, types.NewAuthError(types.ReasonMalformed)
	}

	return types.Claims{
		Email:     tc.Email,
		Username:  tc.Username,
		FirstName: tc.FirstName,
		LastName:  tc.LastName,
	}, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return types.ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return types.ReasonInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return types.ReasonTokenExpired
	default:
		return types.ReasonInvalidToken
	}
}
