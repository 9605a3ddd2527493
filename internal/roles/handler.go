package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *rbac.Service
	binder  *httpx.Binder
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *rbac.Service, binder *httpx.Binder, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: binder, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourceRole, shared.ActionList)).Get("/", h.listRoles)
	r.With(h.rbac.Require(shared.ResourceRole, shared.ActionCreate)).Post("/", h.createRole)
	r.With(h.rbac.Require(shared.ResourceRole, shared.ActionRead)).Get("/{id}", h.getRole)
	r.With(h.rbac.Require(shared.ResourceRole, shared.ActionUpdate)).Put("/{id}", h.updateRole)
	r.With(h.rbac.Require(shared.ResourceRole, shared.ActionDelete)).Delete("/{id}", h.deleteRole)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ResourceRole, shared.ActionUpdate))
		r.Post("/{roleId}/permissions/{permissionId}", h.assignPermission)
		r.Delete("/{roleId}/permissions/{permissionId}", h.revokePermission)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := rbac.ParseRoleName(req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), name, req.Description)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRoleRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, upd)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Role deleted successfully")
}

func (h *Handler) assignPermission(w http.ResponseWriter, r *http.Request) {
	roleID, permID, ok := h.edgeParams(w, r)
	if !ok {
		return
	}
	role, err := h.service.AssignPermission(r.Context(), roleID, permID)
	if err != nil {
		h.fail(w, "assign permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, permID, ok := h.edgeParams(w, r)
	if !ok {
		return
	}
	role, err := h.service.RevokePermission(r.Context(), roleID, permID)
	if err != nil {
		h.fail(w, "revoke permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) edgeParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	roleID, err := httpx.IDParam(r, "roleId")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	permID, err := httpx.IDParam(r, "permissionId")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return roleID, permID, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
