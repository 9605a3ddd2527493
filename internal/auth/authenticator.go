package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

// Authenticator resolves bearer access tokens into a request principal.
type Authenticator struct {
	Tokens   *TokenService
	Users    users.Repository
	Recorder Recorder
	Logger   *slog.Logger
}

// Middleware rejects requests without a valid access token.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Fail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := a.Tokens.ValidateStrict(raw, AccessToken)
		if err != nil {
			a.reject(w, err)
			return
		}
		user, err := a.Users.FindByEmail(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				a.reject(w, shared.ErrEmptyClaims)
				return
			}
			a.logger().Error("authenticate lookup user", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		principal := &shared.Principal{UserID: user.ID, Email: user.Email, Roles: claims.Roles}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (a Authenticator) reject(w http.ResponseWriter, err error) {
	why := reason(err)
	if a.Recorder != nil {
		a.Recorder.TokenRejected(why)
	}
	a.logger().Warn("access token rejected", slog.String("reason", why))
	httpx.Fail(w, http.StatusUnauthorized, "invalid or expired token")
}

func (a Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
