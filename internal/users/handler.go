package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, binder *httpx.Binder, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: binder, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourceUser, shared.ActionList)).Get("/", h.listUsers)
	r.With(h.rbac.Require(shared.ResourceUser, shared.ActionCreate)).Post("/", h.createUser)
	r.Get("/check-permission", h.checkPermission)
	r.With(h.rbac.RequireOr(shared.ResourceUser, shared.ActionRead, isSelf)).Get("/{id}", h.getUser)
	r.With(h.rbac.RequireOr(shared.ResourceUser, shared.ActionUpdate, isSelf)).Put("/{id}", h.updateUser)
	r.With(h.rbac.Require(shared.ResourceUser, shared.ActionDelete)).Delete("/{id}", h.deleteUser)
}

// isSelf admits callers addressing their own record.
func isSelf(r *http.Request, p *shared.Principal) bool {
	return chi.URLParam(r, "id") == strconv.FormatInt(p.UserID, 10)
}

type createUserRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR USER"`
}

type updateUserRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR USER"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     rbac.RoleName(req.Role),
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateUserRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := UpdateInput{FullName: req.FullName, Email: req.Email, Password: req.Password}
	if req.Role != nil {
		// Changing a role always requires the capability, self-access does not cover it.
		principal := shared.PrincipalFromContext(r.Context())
		allowed, err := h.service.CheckPermission(r.Context(), principal.UserID, shared.ResourceUser, shared.ActionUpdate)
		if err != nil {
			h.fail(w, "update user", err)
			return
		}
		if !allowed {
			httpx.Fail(w, http.StatusForbidden, "access denied")
			return
		}
		role, err := rbac.ParseRoleName(*req.Role)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.Role = &role
	}
	user, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.Success(w, http.StatusOK, "User deleted successfully")
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "userId is required")
		return
	}
	resource, action := q.Get("resourceName"), q.Get("actionName")
	if resource == "" || action == "" {
		httpx.Fail(w, http.StatusBadRequest, "resourceName and actionName are required")
		return
	}
	allowed, err := h.service.CheckPermission(r.Context(), userID, resource, action)
	if err != nil {
		h.fail(w, "check permission", err)
		return
	}
	if allowed {
		httpx.JSON(w, http.StatusOK, httpx.APIResponse{Success: true, Message: fmt.Sprintf("User has permission to perform %s on %s", action, resource)})
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.APIResponse{Success: false, Message: fmt.Sprintf("User does not have permission to perform %s on %s", action, resource)})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
