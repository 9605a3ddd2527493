package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/shared"
)

// PermissionsHandler serves the permission catalog: resources, actions and permissions.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, binder *httpx.Binder, rbac Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, service: service, binder: binder, rbac: rbac}
}

// MountPermissionRoutes registers /api/permissions.
func (h *PermissionsHandler) MountPermissionRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourcePermission, shared.ActionList)).Get("/", h.listPermissions)
	r.With(h.rbac.Require(shared.ResourcePermission, shared.ActionCreate)).Post("/", h.createPermission)
	r.With(h.rbac.Require(shared.ResourcePermission, shared.ActionRead)).Get("/{id}", h.getPermission)
	r.With(h.rbac.Require(shared.ResourcePermission, shared.ActionUpdate)).Patch("/{id}", h.updatePermission)
	r.With(h.rbac.Require(shared.ResourcePermission, shared.ActionDelete)).Delete("/{id}", h.deletePermission)
}

// MountResourceRoutes registers /api/resources.
func (h *PermissionsHandler) MountResourceRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourceResource, shared.ActionList)).Get("/", h.listResources)
	r.With(h.rbac.Require(shared.ResourceResource, shared.ActionCreate)).Post("/", h.createResource)
	r.With(h.rbac.Require(shared.ResourceResource, shared.ActionRead)).Get("/{id}", h.getResource)
	r.With(h.rbac.Require(shared.ResourceResource, shared.ActionUpdate)).Put("/{id}", h.updateResource)
	r.With(h.rbac.Require(shared.ResourceResource, shared.ActionDelete)).Delete("/{id}", h.deleteResource)
}

// MountActionRoutes registers /api/actions.
func (h *PermissionsHandler) MountActionRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourceAction, shared.ActionList)).Get("/", h.listActions)
	r.With(h.rbac.Require(shared.ResourceAction, shared.ActionCreate)).Post("/", h.createAction)
	r.With(h.rbac.Require(shared.ResourceAction, shared.ActionRead)).Get("/{id}", h.getAction)
	r.With(h.rbac.Require(shared.ResourceAction, shared.ActionUpdate)).Put("/{id}", h.updateAction)
	r.With(h.rbac.Require(shared.ResourceAction, shared.ActionDelete)).Delete("/{id}", h.deleteAction)
}

type permissionRequest struct {
	ResourceName string `json:"resourceName" validate:"required"`
	ActionName   string `json:"actionName" validate:"required"`
	Description  string `json:"description" validate:"max=255"`
}

type permissionDescriptionRequest struct {
	Description string `json:"description" validate:"max=255"`
}

type namedRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type namedUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=50"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *PermissionsHandler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.ResourceName, req.ActionName, req.Description)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req permissionDescriptionRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.UpdatePermissionDescription(r.Context(), id, req.Description)
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Permission deleted successfully")
}

func (h *PermissionsHandler) listResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.ListResources(r.Context())
	if err != nil {
		h.fail(w, "list resources", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resources)
}

func (h *PermissionsHandler) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.GetResource(r.Context(), id)
	if err != nil {
		h.fail(w, "get resource", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *PermissionsHandler) createResource(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.CreateResource(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create resource", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *PermissionsHandler) updateResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req namedUpdateRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.UpdateResource(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.fail(w, "update resource", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *PermissionsHandler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteResource(r.Context(), id); err != nil {
		h.fail(w, "delete resource", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Resource deleted successfully")
}

func (h *PermissionsHandler) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.ListActions(r.Context())
	if err != nil {
		h.fail(w, "list actions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, actions)
}

func (h *PermissionsHandler) getAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.GetAction(r.Context(), id)
	if err != nil {
		h.fail(w, "get action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, act)
}

func (h *PermissionsHandler) createAction(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.CreateAction(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create action", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, act)
}

func (h *PermissionsHandler) updateAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req namedUpdateRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.UpdateAction(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.fail(w, "update action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, act)
}

func (h *PermissionsHandler) deleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAction(r.Context(), id); err != nil {
		h.fail(w, "delete action", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Action deleted successfully")
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
