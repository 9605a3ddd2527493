package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/cloven/rbac-admin/internal/users"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Claims is the JWT payload. Roles is present on access tokens only.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in milliseconds.
	ExpiresIn int64
	User      users.User
}

// RefreshResult is returned by a successful refresh.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
}
