package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an entity lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation on create or rename.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login or refresh failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a request without a usable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrRoleInUse indicates a role cannot be removed while users reference it.
	ErrRoleInUse = errors.New("role is assigned to users")
	// ErrConfiguration indicates missing seed data or invalid deployment settings.
	ErrConfiguration = errors.New("configuration error")
)

// Token verification failures.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrExpiredToken     = errors.New("token expired")
	ErrUnsupportedToken = errors.New("unsupported token")
	ErrEmptyClaims      = errors.New("token claims empty")
)

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrUnsupportedToken) ||
		errors.Is(err, ErrEmptyClaims)
}

// Error carries a client-facing message while matching its kind through errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
