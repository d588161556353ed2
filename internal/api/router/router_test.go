package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innarclinica/clinic-platform/internal/agenda"
	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/internal/availability"
	"github.com/innarclinica/clinic-platform/internal/users"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	issuer := auth.NewTokenIssuer("test-secret", 0)

	usersRepo := users.NewInMemoryRepository()
	usersService := users.NewService(usersRepo, logger)

	seed := func(usuario, rol, consultorio string) {
		_, err := usersService.Create(context.Background(), &users.CreateUserRequest{
			Usuario:           usuario,
			Nombre:            usuario,
			Rol:               rol,
			Password:          "secreta1",
			NumeroConsultorio: consultorio,
		})
		require.NoError(t, err)
	}
	seed("admin", auth.RolAdmin, "")
	seed("recepcion", auth.RolRecepcion, "")
	seed("electro", auth.RolElectro, "")

	authService := auth.NewService(usersService, issuer, auth.NewLoginLimiter(nil, 0, 0), nil, logger)

	gate := availability.NewService(availability.NewInMemoryRepository(), logger)
	engine := agenda.NewEngine(agenda.NewInMemoryRepository(), gate, logger)

	return New(&Config{
		Logger:        logger,
		Issuer:        issuer,
		AuthHandler:   auth.NewHandler(authService, logger),
		AgendaHandler: agenda.NewHandler(engine, logger),
		UsersHandler:  users.NewHandler(usersService, logger),
	})
}

func login(t *testing.T, handler http.Handler, usuario string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"usuario": usuario, "password": "secreta1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func get(handler http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	handler := newTestRouter(t)
	rec := get(handler, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestRouter(t)

	for _, path := range []string{"/api/turnos", "/api/usuarios", "/api/auth/me"} {
		rec := get(handler, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLoginGrantsAccess(t *testing.T) {
	handler := newTestRouter(t)
	token := login(t, handler, "recepcion")

	rec := get(handler, "/api/turnos?doctor_id=1&fecha=2026-09-01", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(handler, "/api/auth/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	handler := newTestRouter(t)

	// User administration is admin-only.
	rec := get(handler, "/api/usuarios", login(t, handler, "electro"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(handler, "/api/usuarios", login(t, handler, "admin"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// The electro role has no business in the consult queue.
	rec = get(handler, "/api/turnos?doctor_id=1&fecha=2026-09-01", login(t, handler, "electro"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reception can read the doctor picker without admin rights.
	rec = get(handler, "/api/doctores", login(t, handler, "recepcion"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
