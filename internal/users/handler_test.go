package users_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

// fakeAuth stands in for the bearer authenticator: it trusts an X-User-ID header.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id int64
		if _, err := fmt.Sscan(r.Header.Get("X-User-ID"), &id); err == nil {
			r = r.WithContext(shared.ContextWithPrincipal(r.Context(), &shared.Principal{UserID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(e env) http.Handler {
	h := users.NewHandler(nil, e.service, httpx.NewBinder(), rbac.Middleware{Service: e.rbac})
	r := chi.NewRouter()
	r.Use(fakeAuth)
	r.Route("/api/users", h.MountRoutes)
	return r
}

func call(t *testing.T, h http.Handler, method, path string, caller int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(caller))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func seedUsers(t *testing.T, e env) (users.User, users.User) {
	t.Helper()
	ctx := context.Background()
	admin, err := e.service.Create(ctx, users.CreateInput{FullName: "Admin", Email: "admin@example.com", Password: "x", Role: rbac.RoleAdmin})
	require.NoError(t, err)
	member, err := e.service.Create(ctx, users.CreateInput{FullName: "Member", Email: "member@example.com", Password: "x"})
	require.NoError(t, err)
	return admin, member
}

func TestHandlerListRequiresCapability(t *testing.T) {
	e := newEnv(t)
	admin, member := seedUsers(t, e)
	router := newRouter(e)

	require.Equal(t, http.StatusUnauthorized, call(t, router, http.MethodGet, "/api/users", 0, "").Code)
	require.Equal(t, http.StatusForbidden, call(t, router, http.MethodGet, "/api/users", member.ID, "").Code)

	rr := call(t, router, http.MethodGet, "/api/users", admin.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	require.NotContains(t, rr.Body.String(), "hashed:")
}

func TestHandlerSelfAccess(t *testing.T) {
	e := newEnv(t)
	admin, member := seedUsers(t, e)
	router := newRouter(e)

	own := fmt.Sprintf("/api/users/%d", member.ID)
	other := fmt.Sprintf("/api/users/%d", admin.ID)

	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, own, member.ID, "").Code)
	require.Equal(t, http.StatusForbidden, call(t, router, http.MethodGet, other, member.ID, "").Code)

	rr := call(t, router, http.MethodPut, own, member.ID, `{"fullName":"Renamed"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"fullName":"Renamed"`)

	// Self-access does not extend to changing the role.
	rr = call(t, router, http.MethodPut, own, member.ID, `{"role":"ADMIN"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = call(t, router, http.MethodPut, own, admin.ID, `{"role":"MODERATOR"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"roleName":"MODERATOR"`)
}

func TestHandlerCreateAndDelete(t *testing.T) {
	e := newEnv(t)
	admin, member := seedUsers(t, e)
	router := newRouter(e)

	rr := call(t, router, http.MethodPost, "/api/users", admin.ID, `{"fullName":"New","email":"new@example.com","password":"secret1","role":"MODERATOR"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "MODERATOR", created["roleName"])

	rr = call(t, router, http.MethodPost, "/api/users", admin.ID, `{"fullName":"New","email":"new@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = call(t, router, http.MethodPost, "/api/users", admin.ID, `{"fullName":"Bad","email":"bad@example.com","password":"secret1","role":"ROOT"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusForbidden, call(t, router, http.MethodDelete, fmt.Sprintf("/api/users/%d", admin.ID), member.ID, "").Code)

	rr = call(t, router, http.MethodDelete, fmt.Sprintf("/api/users/%d", member.ID), admin.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":true,"message":"User deleted successfully"}`, rr.Body.String())

	rr = call(t, router, http.MethodGet, fmt.Sprintf("/api/users/%d", member.ID), admin.ID, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), `"success":false`)
}

func TestHandlerCheckPermission(t *testing.T) {
	e := newEnv(t)
	admin, member := seedUsers(t, e)
	router := newRouter(e)

	path := fmt.Sprintf("/api/users/check-permission?userId=%d&resourceName=USER&actionName=DELETE", admin.ID)
	rr := call(t, router, http.MethodGet, path, member.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":true,"message":"User has permission to perform DELETE on USER"}`, rr.Body.String())

	path = fmt.Sprintf("/api/users/check-permission?userId=%d&resourceName=USER&actionName=DELETE", member.ID)
	rr = call(t, router, http.MethodGet, path, member.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":false,"message":"User does not have permission to perform DELETE on USER"}`, rr.Body.String())

	require.Equal(t, http.StatusUnauthorized, call(t, router, http.MethodGet, path, 0, "").Code)
	require.Equal(t, http.StatusBadRequest, call(t, router, http.MethodGet, "/api/users/check-permission?userId=x", member.ID, "").Code)
}
