// Package auth issues and verifies the bearer tokens protecting the agent
// API. Tokens are service credentials, not user sessions: callers are other
// telemetry components reading the workload cache.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
)

// Claims carried by an agent API token.
type Claims struct {
	Service string `json:"service"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken mints a token for an authenticated service identity.
func GenerateToken(subject, role string, cfg *config.Config) (string, time.Time, error) {
	exp := time.Now().Add(time.Duration(cfg.JWTExpMinutes) * time.Minute)
	claims := &Claims{
		Service: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken validates a token and returns its claims.
func ParseToken(tokenStr string, cfg *config.Config) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
