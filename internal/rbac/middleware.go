package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service  *Service
	Logger   *slog.Logger
	Observer CheckObserver
}

// CheckObserver is notified of every capability decision.
type CheckObserver interface {
	PermissionChecked(resource, action string, allowed bool)
}

// Bypass lets a request through a guard without the capability, e.g. a user
// reading their own record.
type Bypass func(r *http.Request, p *shared.Principal) bool

type permissionsContextKey struct{}

// Require ensures the current user's role grants action on resource.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return m.RequireOr(resource, action, nil)
}

// RequireOr behaves like Require but admits the request when bypass reports true.
func (m Middleware) RequireOr(resource, action string, bypass Bypass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if bypass != nil && bypass(r, principal) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, granted, err := m.permissions(r.Context(), principal.UserID)
			if errors.Is(err, shared.ErrNotFound) {
				m.observe(resource, action, false)
				httpx.Fail(w, http.StatusForbidden, "access denied")
				return
			}
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			allowed := granted.Allows(resource, action)
			m.observe(resource, action, allowed)
			if !allowed {
				httpx.Fail(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) observe(resource, action string, allowed bool) {
	if m.Observer != nil {
		m.Observer.PermissionChecked(resource, action, allowed)
	}
}

// permissions resolves the caller's set once per request.
func (m Middleware) permissions(ctx context.Context, userID int64) (context.Context, PermissionSet, error) {
	if cached, ok := ctx.Value(permissionsContextKey{}).(PermissionSet); ok {
		return ctx, cached, nil
	}
	granted, err := m.Service.EffectivePermissions(ctx, userID)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, permissionsContextKey{}, granted), granted, nil
}

// PermissionsFromContext returns the set resolved by a guard earlier in the chain.
func PermissionsFromContext(ctx context.Context) (PermissionSet, bool) {
	perms, ok := ctx.Value(permissionsContextKey{}).(PermissionSet)
	return perms, ok
}
