package identity_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/identity"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

type Handler struct {
	Identity *identity.Service
	Logger   *logger.Logger
}

func NewHandler(identityService *identity.Service, log *logger.Logger) *Handler {
	return &Handler{Identity: identityService, Logger: log}
}

// RegisterPublicRoutes mounts signup and login.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
}

// RegisterProtectedRoutes mounts the endpoints that need a session.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/users/me", h.Me)
	r.Patch("/users/me", h.UpdateMe)
}

type sessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	user, token, err := h.Identity.Signup(r.Context(), req)
	if err != nil {
		utils.WriteError(w, "Signup failed", err)
		return
	}
	h.Logger.LogSecurity("SIGNUP", "new user "+user.Username)
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Account created", sessionResponse{User: user, Token: token}))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	user, token, err := h.Identity.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.Logger.LogSecurity("LOGIN_FAILED", "username "+req.Username)
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Login failed", err.Error()))
			return
		}
		utils.WriteError(w, "Login failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged in", sessionResponse{User: user, Token: token}))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if err := h.Identity.Logout(r.Context(), claims); err != nil {
		utils.WriteError(w, "Logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	user, err := h.Identity.GetUser(r.Context(), viewer.UserID)
	if err != nil {
		utils.WriteError(w, "Failed to fetch user", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("User retrieved", user))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var update models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	user, err := h.Identity.UpdateUser(r.Context(), viewer.UserID, update)
	if err != nil {
		utils.WriteError(w, "Failed to update user", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("User updated", user))
}
