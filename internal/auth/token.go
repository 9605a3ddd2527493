package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cloven/rbac-admin/internal/shared"
)

// TokenConfig holds the signing material and lifetimes. It is built once at
// startup and never mutated.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService issues and verifies HS256 JWTs.
type TokenService struct {
	cfg    TokenConfig
	now    func() time.Time
	parser *jwt.Parser
	lax    *jwt.Parser
}

// NewTokenService validates cfg and constructs the service. An empty
// RefreshSecret means refresh tokens share the access secret.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, shared.Errorf(shared.ErrConfiguration, "jwt secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, shared.Errorf(shared.ErrConfiguration, "jwt lifetimes must be positive")
	}
	if len(cfg.RefreshSecret) == 0 {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	s := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	s.lax = jwt.NewParser(jwt.WithoutClaimsValidation())
	return s, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// IssueAccessToken signs a token for email carrying roles.
func (s *TokenService) IssueAccessToken(email string, roles []string) (string, error) {
	if len(roles) == 0 {
		return "", shared.Errorf(shared.ErrValidation, "access token requires at least one role")
	}
	return s.issue(AccessToken, email, roles)
}

// IssueRefreshToken signs a token for email without roles.
func (s *TokenService) IssueRefreshToken(email string) (string, error) {
	return s.issue(RefreshToken, email, nil)
}

func (s *TokenService) issue(kind TokenKind, subject string, roles []string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", shared.Errorf(shared.ErrValidation, "token subject is required")
	}
	ttl, secret := s.cfg.AccessTTL, s.cfg.AccessSecret
	if kind == RefreshToken {
		ttl, secret = s.cfg.RefreshTTL, s.cfg.RefreshSecret
	}
	now := s.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *TokenService) keyFunc(kind TokenKind) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: alg %v", shared.ErrUnsupportedToken, t.Header["alg"])
		}
		if kind == RefreshToken {
			return s.cfg.RefreshSecret, nil
		}
		return s.cfg.AccessSecret, nil
	}
}

// ExtractSubject returns the subject of a correctly signed token, ignoring
// expiry. Every parse or signature failure is ErrMalformedToken.
func (s *TokenService) ExtractSubject(token string, kind TokenKind) (string, error) {
	claims := &Claims{}
	if _, err := s.lax.ParseWithClaims(token, claims, s.keyFunc(kind)); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return "", shared.ErrEmptyClaims
	}
	return claims.Subject, nil
}

// IsValid reports whether token is correctly signed, unexpired, of the given
// kind and issued for expectedSubject.
func (s *TokenService) IsValid(token string, kind TokenKind, expectedSubject string) bool {
	claims, err := s.ValidateStrict(token, kind)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// ValidateStrict verifies token and classifies any failure as one of
// ErrMalformedToken, ErrExpiredToken, ErrUnsupportedToken or ErrEmptyClaims.
func (s *TokenService) ValidateStrict(token string, kind TokenKind) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, shared.ErrEmptyClaims
	}
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(token, claims, s.keyFunc(kind)); err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, shared.ErrEmptyClaims
	}
	// Roles mark the kind, so neither token can stand in for the other.
	switch {
	case kind == AccessToken && len(claims.Roles) == 0:
		return nil, fmt.Errorf("%w: access token without roles", shared.ErrUnsupportedToken)
	case kind == RefreshToken && len(claims.Roles) > 0:
		return nil, fmt.Errorf("%w: refresh token with roles", shared.ErrUnsupportedToken)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, shared.ErrUnsupportedToken):
		return shared.ErrUnsupportedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return shared.ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return shared.ErrEmptyClaims
	default:
		return fmt.Errorf("%w: %v", shared.ErrMalformedToken, err)
	}
}
