package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes login and session introspection over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates the auth HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("auth: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Login authenticates a user.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Usuario  string `json:"usuario"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Usuario, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			writeAuthError(w, http.StatusUnauthorized, "usuario o contraseña incorrectos")
		case errors.Is(err, ErrTooManyAttempts):
			writeAuthError(w, http.StatusTooManyRequests, "demasiados intentos fallidos, intente de nuevo en unos minutos")
		default:
			h.logger.Error("login failed", "error", err)
			writeAuthError(w, http.StatusInternalServerError, "error interno del servidor")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Me returns the session identity. Mounted behind RequireAuth.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeAuthError(w, http.StatusUnauthorized, "token requerido")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id": claims.UserID,
		"usuario": claims.Usuario,
		"nombre":  claims.Nombre,
		"rol":     claims.Rol,
	})
}
