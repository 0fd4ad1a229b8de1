package auth

import (
	"errors"
	"time"

	"shelfmate/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are minted by the external identity service. The identity is
// carried in auth_user_id, falling back to the registered subject.
type Claims struct {
	AuthUserID string `json:"auth_user_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the login identity the token speaks for.
func (c *Claims) Identity() string {
	if c.AuthUserID != "" {
		return c.AuthUserID
	}
	return c.Subject
}

// GenerateAccessToken mints a token the way the identity service does. The
// service itself only verifies; this is used by tests and local tooling.
func GenerateAccessToken(cfg *config.JWTConfig, authUserID string) (string, error) {
	now := time.Now()
	claims := Claims{
		AuthUserID: authUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   authUserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AccessSecret))
}

var ErrInvalidToken = errors.New("invalid token")

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.AccessSecret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Identity() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
