package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wheelhouse/wheelhouse/internal/authz"
)

// TokenConfig holds credential-token signing configuration.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// CredentialClaims are the claims carried by an issued credential token.
type CredentialClaims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the opaque credential tokens handed to
// the session store. Tokens are HS256 JWTs; callers treat them as opaque
// strings.
type TokenIssuer struct {
	cfg TokenConfig
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid token leeway")
	}
	return &TokenIssuer{cfg: cfg}, nil
}

// Issue mints a token for the user.
func (i *TokenIssuer) Issue(user *User) (string, error) {
	now := time.Now()
	claims := CredentialClaims{
		UID:  user.ID,
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims. Any validation failure
// is reported as ErrTokenInvalid; callers do not distinguish expiry from
// tampering.
func (i *TokenIssuer) Parse(tokenString string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return i.cfg.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// RoleFromClaims returns the role recorded at issue time.
func (c *CredentialClaims) RoleFromClaims() authz.Role {
	return authz.Role(c.Role)
}
