package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloven/rbac-admin/internal/platform/httpx"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
}

// NewHandler creates a new auth handler.
func NewHandler(logger *slog.Logger, service *Service, binder *httpx.Binder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: binder}
}

// MountRoutes registers auth endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.HandleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/signout", h.handleSignout)
}

type signupRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Type         string `json:"type"`
	ExpiresIn    int64  `json:"expiresIn"`
	ID           int64  `json:"id"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.fail(w, "signup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// HandleLogin authenticates credentials and returns a token pair. It is
// exported so the router can also serve it under the sign-in alias.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		Type:         "Bearer",
		ExpiresIn:    res.ExpiresIn,
		ID:           res.User.ID,
		FullName:     res.User.FullName,
		Email:        res.User.Email,
		Role:         res.User.Role.Name.String(),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, refreshResponse{AccessToken: res.AccessToken, ExpiresIn: res.ExpiresIn})
}

// handleSignout acknowledges the request. Tokens are stateless, so the client
// discards them.
func (h *Handler) handleSignout(w http.ResponseWriter, _ *http.Request) {
	httpx.Success(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
