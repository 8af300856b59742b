package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drivelink/drivelink-api/pkg/config"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

// APIClaims is the JWT payload for tokens protecting the internal HTTP
// endpoints, such as the admin send endpoint.
type APIClaims struct {
	Subject string `json:"sub_name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates internal API tokens.
type TokenService struct {
	secret     []byte
	expiration time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{secret: []byte(cfg.Secret), expiration: cfg.Expiration}
}

// Issue creates a signed token for the subject with the given role.
func (s *TokenService) Issue(subject, role string) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &APIClaims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*APIClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*APIClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
