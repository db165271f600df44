package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JWT ISSUER
// Signs and verifies the bearer tokens the HTTP layer rides on.
// ══════════════════════════════════════════════════════════════════════════════

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig configures the issuer.
type JWTConfig struct {
	// Secret signs tokens with HMAC-SHA256.
	Secret string

	// TTL is the token lifetime.
	TTL time.Duration

	// Issuer goes into the iss claim.
	Issuer string
}

// DefaultJWTConfig returns the default configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret: secret,
		TTL:    24 * time.Hour,
		Issuer: "rianhub",
	}
}

// JWTIssuer implements the login command's TokenIssuer port and the
// HTTP middleware's verification.
type JWTIssuer struct {
	config JWTConfig
}

// NewJWTIssuer creates the issuer.
func NewJWTIssuer(config JWTConfig) (*JWTIssuer, error) {
	if config.Secret == "" {
		return nil, errors.New("jwt: secret is required")
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &JWTIssuer{config: config}, nil
}

// Issue signs a token for the learner.
func (j *JWTIssuer) Issue(learnerID string, role learner.Role) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(j.config.TTL)

	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a token and returns the learner ID and role.
func (j *JWTIssuer) Verify(token string) (learnerID string, role learner.Role, err error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("jwt: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(j.config.Secret), nil
	}, jwt.WithIssuer(j.config.Issuer))
	if err != nil || !parsed.Valid {
		return "", "", shared.ErrUnauthorized
	}
	return claims.Subject, learner.Role(claims.Role), nil
}
