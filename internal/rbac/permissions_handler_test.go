package rbac_test

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
	"github.com/cloven/rbac-admin/internal/store/memory"
	"github.com/cloven/rbac-admin/internal/users"
)

type catalogEnv struct {
	router http.Handler
	admin  int64
	member int64
}

// newCatalogEnv grants ADMIN every catalog permission and leaves USER empty.
func newCatalogEnv(t *testing.T) catalogEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := rbac.NewService(store, store, nil, nil)

	admin, err := svc.CreateRole(ctx, rbac.RoleAdmin, "")
	require.NoError(t, err)
	member, err := svc.CreateRole(ctx, rbac.RoleUser, "")
	require.NoError(t, err)
	for _, act := range shared.CoreActions() {
		_, err := svc.CreateAction(ctx, act, "")
		require.NoError(t, err)
	}
	for _, res := range []string{shared.ResourcePermission, shared.ResourceResource, shared.ResourceAction} {
		_, err := svc.CreateResource(ctx, res, "")
		require.NoError(t, err)
		for _, act := range shared.CoreActions() {
			p, err := svc.CreatePermission(ctx, res, act, "")
			require.NoError(t, err)
			_, err = svc.AssignPermission(ctx, admin.ID, p.ID)
			require.NoError(t, err)
		}
	}
	adminUser, err := store.Create(ctx, users.NewUser{FullName: "A", Email: "a@example.com", PasswordHash: "x", RoleID: admin.ID})
	require.NoError(t, err)
	memberUser, err := store.Create(ctx, users.NewUser{FullName: "M", Email: "m@example.com", PasswordHash: "x", RoleID: member.ID})
	require.NoError(t, err)

	h := rbac.NewPermissionsHandler(nil, svc, httpx.NewBinder(), rbac.Middleware{Service: svc})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id int64
			if _, err := fmt.Sscan(r.Header.Get("X-User-ID"), &id); err == nil {
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), &shared.Principal{UserID: id}))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/permissions", h.MountPermissionRoutes)
	r.Route("/api/resources", h.MountResourceRoutes)
	r.Route("/api/actions", h.MountActionRoutes)
	return catalogEnv{router: r, admin: adminUser.ID, member: memberUser.ID}
}

func (e catalogEnv) do(t *testing.T, method, path string, caller int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User-ID", fmt.Sprint(caller))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeID(t *testing.T, rr *httptest.ResponseRecorder) int64 {
	t.Helper()
	var body struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotZero(t, body.ID)
	return body.ID
}

func TestPermissionsHandlerLifecycle(t *testing.T) {
	e := newCatalogEnv(t)

	rr := e.do(t, http.MethodPost, "/api/resources", e.admin, `{"name":"REPORT","description":"Reports"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	resID := decodeID(t, rr)

	rr = e.do(t, http.MethodPost, "/api/resources", e.admin, `{"name":"REPORT"}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/permissions", e.admin, `{"resourceName":"REPORT","actionName":"READ","description":"read reports"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"name":"REPORT:READ"`)
	permID := decodeID(t, rr)

	rr = e.do(t, http.MethodPost, "/api/permissions", e.admin, `{"resourceName":"REPORT","actionName":"READ"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "permission already exists for resource 'REPORT' and action 'READ'")

	rr = e.do(t, http.MethodPost, "/api/permissions", e.admin, `{"resourceName":"NOPE","actionName":"READ"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "resource not found with name: NOPE")

	rr = e.do(t, http.MethodPatch, fmt.Sprintf("/api/permissions/%d", permID), e.admin, `{"description":"updated"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"description":"updated"`)

	rr = e.do(t, http.MethodPut, fmt.Sprintf("/api/resources/%d", resID), e.admin, `{"name":"REPORTS"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(t, http.MethodGet, fmt.Sprintf("/api/permissions/%d", permID), e.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"name":"REPORTS:READ"`)

	rr = e.do(t, http.MethodDelete, fmt.Sprintf("/api/resources/%d", resID), e.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, fmt.Sprintf("/api/permissions/%d", permID), e.admin, "").Code)
}

func TestPermissionsHandlerActions(t *testing.T) {
	e := newCatalogEnv(t)

	rr := e.do(t, http.MethodGet, "/api/actions", e.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var actions []rbac.Action
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &actions))
	require.Len(t, actions, 5)

	rr = e.do(t, http.MethodPost, "/api/actions", e.admin, `{"name":"EXPORT"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeID(t, rr)

	rr = e.do(t, http.MethodPost, "/api/actions", e.admin, `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "name is required")

	rr = e.do(t, http.MethodDelete, fmt.Sprintf("/api/actions/%d", id), e.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, fmt.Sprintf("/api/actions/%d", id), e.admin, "").Code)
}

func TestPermissionsHandlerGuards(t *testing.T) {
	e := newCatalogEnv(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/permissions", ""},
		{http.MethodPost, "/api/resources", `{"name":"X"}`},
		{http.MethodDelete, "/api/actions/1", ""},
	} {
		rr := e.do(t, tc.method, tc.path, e.member, tc.body)
		require.Equal(t, http.StatusForbidden, rr.Code, "%s %s", tc.method, tc.path)
		require.JSONEq(t, `{"success":false,"message":"access denied"}`, rr.Body.String())
	}
}
