package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opensource-insurance/heron/internal/auth"
	"github.com/opensource-insurance/heron/internal/domain"
)

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "email and password are required",
		})
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleInsurer
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.FirstName, req.LastName, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRole):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "role must be admin or insurer",
			})
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "email already registered",
			})
		default:
			slog.Error("registration failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "registration failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login. Unknown email and wrong password
// produce the same response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
			return
		}
		slog.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "login failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal := GetPrincipal(r.Context())

	user, err := h.repo.GetUser(r.Context(), principal.ID)
	if err != nil {
		h.writeRepoError(w, err, "user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
