// Package auth issues and verifies access tokens and guards HTTP routes.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/id"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
)

const minSecretBytes = 32

var (
	// ErrInvalidToken covers malformed, forged and mis-issued tokens.
	ErrInvalidToken = apperrors.New(apperrors.CodeTokenInvalid, "access token is invalid")
	// ErrExpiredToken is returned for tokens past their exp claim.
	ErrExpiredToken = apperrors.New(apperrors.CodeTokenExpired, "access token is expired")
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	// ErrSecretTooShort rejects weak signing keys at startup.
	ErrSecretTooShort = errors.New("jwt secret must be at least 32 bytes")
)

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    string
	Role      domain.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssuerConfig configures token signing.
type IssuerConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
	NewID  func() (string, error)
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	newID  func() (string, error)
}

// NewIssuer validates cfg and returns an issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, ErrSecretTooShort
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = "automatehub"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Issuer{
		key:    []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}, nil
}

// Issue signs a token for userID with role.
func (i *Issuer) Issue(userID string, role domain.Role) (Token, error) {
	jti, err := i.newID()
	if err != nil {
		return Token{}, err
	}
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Role: string(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, algorithm, issuer and expiry of raw.
func (i *Issuer) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMissingToken
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	if parsed.Issuer != i.issuer || parsed.Subject == "" || parsed.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	role, ok := domain.ParseRole(parsed.Role)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(i.now().UTC()) {
		return Claims{}, ErrExpiredToken
	}

	claims := Claims{
		UserID:    parsed.Subject,
		Role:      role,
		TokenID:   parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}
