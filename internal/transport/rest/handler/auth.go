package handler

import (
	"net/http"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest/middleware"
	"github.com/kkogteva6/ReadingPlatform/internal/validation"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.authSvc.Login(req.Email, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.authSvc.Register(req.Email, req.Password, req.Role, req.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Me handles GET /v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
		"home": service.RoleHome(user.Role),
	})
}
