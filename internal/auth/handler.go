package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/version"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// Handler provides HTTP handlers for authentication endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an auth Handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers auth and user management routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	mux.HandleFunc("POST /api/v1/auth/setup", h.handleSetup)
	mux.HandleFunc("GET /api/v1/auth/setup/status", h.handleSetupStatus)
	mux.HandleFunc("GET /api/v1/auth/me", h.handleMe)

	mux.HandleFunc("GET /api/v1/users", h.handleListUsers)
	mux.HandleFunc("POST /api/v1/users", h.handleCreateUser)
	mux.HandleFunc("GET /api/v1/users/{id}", h.handleGetUser)
	mux.HandleFunc("PUT /api/v1/users/{id}", h.handleUpdateUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", h.handleDeleteUser)
}

// Middleware returns the JWT authentication middleware.
func (h *Handler) Middleware() func(http.Handler) http.Handler {
	return AuthMiddleware(h.service.Tokens())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// serviceError maps service errors onto problem responses.
func (h *Handler) serviceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		writeAuthError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ErrUserExists):
		writeAuthError(w, http.StatusConflict, ErrUserExists.Error())
	case errors.Is(err, ErrSetupComplete):
		writeAuthError(w, http.StatusConflict, ErrSetupComplete.Error())
	case errors.Is(err, ErrInvalidInput):
		writeAuthError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserDisabled):
		writeAuthError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, ErrInvalidToken):
		writeAuthError(w, http.StatusUnauthorized, "invalid or expired refresh token")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		writeAuthError(w, http.StatusInternalServerError, op+" failed")
	}
}

// handleLogin authenticates a user and returns a token pair.
//
//	@Summary		Login
//	@Description	Authenticate with username and password to receive a JWT token pair.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Login credentials"
//	@Success		200		{object}	TokenPair
//	@Failure		400		{object}	models.Problem
//	@Failure		401		{object}	models.Problem
//	@Router			/auth/login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	pair, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.serviceError(w, err, "login")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh exchanges a refresh token for a new pair.
//
//	@Summary		Refresh tokens
//	@Description	Exchange a valid refresh token for a new token pair. The old refresh token is revoked.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	TokenPair
//	@Failure		400		{object}	models.Problem
//	@Failure		401		{object}	models.Problem
//	@Router			/auth/refresh [post]
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeAuthError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUserDisabled) {
			err = ErrInvalidToken
		}
		h.serviceError(w, err, "token refresh")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout revokes a refresh token.
//
//	@Summary		Logout
//	@Tags			auth
//	@Accept			json
//	@Param			request	body	RefreshRequest	true	"Refresh token to revoke"
//	@Success		204		"No Content"
//	@Failure		400		{object}	models.Problem
//	@Router			/auth/logout [post]
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeAuthError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.serviceError(w, err, "logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetup creates the initial admin account.
//
//	@Summary		Initial setup
//	@Description	Create the first admin account. Only works when no users exist.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SetupRequest	true	"Admin account details"
//	@Success		201		{object}	User
//	@Failure		400		{object}	models.Problem
//	@Failure		409		{object}	models.Problem
//	@Router			/auth/setup [post]
func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.service.Setup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.serviceError(w, err, "setup")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleSetupStatus reports whether initial setup is required.
//
//	@Summary		Check setup status
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	SetupStatusResponse
//	@Router			/auth/setup/status [get]
func (h *Handler) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	needed, err := h.service.NeedsSetup(r.Context())
	if err != nil {
		h.serviceError(w, err, "setup status")
		return
	}
	writeJSON(w, http.StatusOK, SetupStatusResponse{SetupRequired: needed, Version: version.Short()})
}

// handleMe returns the claims of the calling user.
//
//	@Summary		Current user
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	User
//	@Failure		401	{object}	models.Problem
//	@Router			/auth/me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := UserFromContext(r.Context())
	if claims == nil {
		writeAuthError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.serviceError(w, err, "get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleListUsers returns all users.
//
//	@Summary		List users
//	@Description	Returns all user accounts. Requires admin role.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		User
//	@Failure		401	{object}	models.Problem
//	@Failure		403	{object}	models.Problem
//	@Router			/users [get]
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.serviceError(w, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleCreateUser adds an account.
//
//	@Summary		Create user
//	@Description	Create a local account. Role defaults to viewer. Requires admin role.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateUserRequest	true	"Account details"
//	@Success		201		{object}	User
//	@Failure		400		{object}	models.Problem
//	@Failure		403		{object}	models.Problem
//	@Failure		409		{object}	models.Problem
//	@Router			/users [post]
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     Role(strings.ToLower(req.Role)),
	})
	if err != nil {
		h.serviceError(w, err, "create user")
		return
	}
	h.logger.Info("user created",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
		zap.String("by", UserFromContext(r.Context()).Username),
	)
	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a user by ID.
//
//	@Summary		Get user
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	User
//	@Failure		403	{object}	models.Problem
//	@Failure		404	{object}	models.Problem
//	@Router			/users/{id} [get]
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	user, err := h.service.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serviceError(w, err, "get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser updates a user's email, role and disabled flag.
//
//	@Summary		Update user
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"User ID"
//	@Param			request	body		UpdateUserRequest	true	"Updated user fields"
//	@Success		200		{object}	User
//	@Failure		400		{object}	models.Problem
//	@Failure		403		{object}	models.Problem
//	@Failure		404		{object}	models.Problem
//	@Router			/users/{id} [put]
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), r.PathValue("id"), req.Email, Role(req.Role), req.Disabled)
	if err != nil {
		h.serviceError(w, err, "update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user.
//
//	@Summary		Delete user
//	@Tags			users
//	@Security		BearerAuth
//	@Param			id	path	string	true	"User ID"
//	@Success		204	"No Content"
//	@Failure		403	{object}	models.Problem
//	@Failure		404	{object}	models.Problem
//	@Router			/users/{id} [delete]
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id := r.PathValue("id")
	if id == UserFromContext(r.Context()).UserID {
		writeAuthError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.serviceError(w, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin writes an error and returns false unless the caller is an admin.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user := UserFromContext(r.Context())
	if user == nil {
		writeAuthError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if Role(user.Role) != RoleAdmin {
		writeAuthError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Problem{
		Type:   models.ProblemTypeBase + "auth-error",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
