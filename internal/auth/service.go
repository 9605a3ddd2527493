package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

// RoleLookup resolves the role assigned to self-registered users.
type RoleLookup interface {
	GetRoleByName(ctx context.Context, name rbac.RoleName) (rbac.Role, error)
}

// Recorder counts authentication outcomes.
type Recorder interface {
	AuthAttempt(flow, outcome string)
	TokenRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(string, string) {}
func (nopRecorder) TokenRejected(string)       {}

// Service wraps authentication business rules.
type Service struct {
	users    users.Repository
	roles    RoleLookup
	hasher   PasswordHasher
	tokens   *TokenService
	recorder Recorder
	logger   *slog.Logger

	// dummyHash is compared against when the email is unknown so both login
	// failure paths cost one hash comparison.
	dummyOnce sync.Once
	dummyHash string
}

// NewService constructs a new Service. A nil recorder disables metrics.
func NewService(repo users.Repository, roles RoleLookup, hasher PasswordHasher, tokens *TokenService, recorder Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: repo, roles: roles, hasher: hasher, tokens: tokens, recorder: recorder, logger: logger}
}

// Signup registers a new account with the default role.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (users.User, error) {
	role, err := s.roles.GetRoleByName(ctx, rbac.DefaultRole)
	if err != nil {
		s.recorder.AuthAttempt("signup", "error")
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.Errorf(shared.ErrConfiguration, "default role %s is not provisioned", rbac.DefaultRole)
		}
		return users.User{}, err
	}
	email = users.NormalizeEmail(email)
	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return users.User{}, err
	}
	if taken {
		s.recorder.AuthAttempt("signup", "conflict")
		return users.User{}, shared.Errorf(shared.ErrAlreadyExists, "email already in use: %s", email)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return users.User{}, err
	}
	user, err := s.users.Create(ctx, users.NewUser{FullName: fullName, Email: email, PasswordHash: hash, RoleID: role.ID})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.recorder.AuthAttempt("signup", "conflict")
			return users.User{}, shared.Errorf(shared.ErrAlreadyExists, "email already in use: %s", email)
		}
		return users.User{}, err
	}
	s.recorder.AuthAttempt("signup", "success")
	s.logger.Info("user signed up", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login validates credentials and issues an access/refresh token pair.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, err
		}
		s.hasher.Verify(password, s.dummy())
		s.recorder.AuthAttempt("login", "failure")
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recorder.AuthAttempt("login", "failure")
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	access, err := s.tokens.IssueAccessToken(user.Email, []string{user.Role.Name.String()})
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.Email)
	if err != nil {
		return LoginResult{}, err
	}
	s.recorder.AuthAttempt("login", "success")
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTTL().Milliseconds(),
		User:         user,
	}, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	email, err := s.tokens.ExtractSubject(refreshToken, RefreshToken)
	if err != nil {
		s.recorder.AuthAttempt("refresh", "failure")
		s.recorder.TokenRejected(reason(err))
		return RefreshResult{}, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return RefreshResult{}, err
		}
		s.recorder.AuthAttempt("refresh", "failure")
		return RefreshResult{}, shared.ErrInvalidCredentials
	}
	if !s.tokens.IsValid(refreshToken, RefreshToken, user.Email) {
		s.recorder.AuthAttempt("refresh", "failure")
		return RefreshResult{}, shared.ErrInvalidCredentials
	}
	access, err := s.tokens.IssueAccessToken(user.Email, []string{user.Role.Name.String()})
	if err != nil {
		return RefreshResult{}, err
	}
	s.recorder.AuthAttempt("refresh", "success")
	return RefreshResult{AccessToken: access, ExpiresIn: s.tokens.AccessTTL().Milliseconds()}, nil
}

// fallbackDummyHash is a valid bcrypt hash at DefaultCost, used when the
// hasher cannot produce a dummy hash of its own.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil || hash == "" {
			s.logger.Error("generate dummy hash", slog.Any("error", err))
			s.dummyHash = fallbackDummyHash
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// reason names a token failure for metrics and logs.
func reason(err error) string {
	switch {
	case errors.Is(err, shared.ErrExpiredToken):
		return "expired"
	case errors.Is(err, shared.ErrUnsupportedToken):
		return "unsupported"
	case errors.Is(err, shared.ErrEmptyClaims):
		return "empty"
	default:
		return "malformed"
	}
}
