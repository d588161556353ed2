package agenda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Engine) {
	t.Helper()
	engine, _, _, _ := newTestEngine(t)
	handler := NewHandler(engine, nil)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv, engine
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerCreateAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/", map[string]any{
		"doctor_id":       7,
		"fecha":           "2024-05-01",
		"hora":            "10:00",
		"paciente_nombre": "Ana Pérez",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created Turno
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, EstadoPendiente, created.Estado)

	resp = doJSON(t, http.MethodGet, srv.URL+"/?doctor_id=7&fecha=2024-05-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []Turno
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestHandlerCreateValidationError(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/", map[string]any{
		"doctor_id": 7,
		"fecha":     "2024-05-01",
		"hora":      "10:00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerCallNextFlow(t *testing.T) {
	srv, engine := newTestServer(t)

	turno := mustCreate(t, engine, 7, "2024-05-01", "10:00", "Ana Pérez")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/%d/en-sala", srv.URL, turno.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/llamar-siguiente", map[string]any{
		"doctor_id": 7,
		"fecha":     "2024-05-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res CallResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, turno.ID, res.Turno.ID)
	assert.Equal(t, EstadoEnAtencion, res.Turno.Estado)

	resp = doJSON(t, http.MethodPost, srv.URL+"/marcar-atendido", map[string]any{"id": turno.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerCallNextEmptyQueueConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/llamar-siguiente", map[string]any{
		"doctor_id": 7,
		"fecha":     "2024-05-01",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerReorderStatuses(t *testing.T) {
	srv, engine := newTestServer(t)

	turno := mustCreate(t, engine, 7, "2024-05-01", "10:00", "Ana Pérez")

	// Unqueued reorder is a state conflict.
	resp := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d/numero", srv.URL, turno.ID), map[string]any{"delta": -1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/%d/en-sala", srv.URL, turno.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// First position cannot move up.
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d/numero", srv.URL, turno.ID), map[string]any{"delta": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Nothing holds position 2 yet.
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d/numero", srv.URL, turno.ID), map[string]any{"delta": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerSetStateAndDelete(t *testing.T) {
	srv, engine := newTestServer(t)

	turno := mustCreate(t, engine, 7, "2024-05-01", "10:00", "Ana Pérez")

	resp := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d/estado", srv.URL, turno.ID), map[string]any{"estado": "CANCELADO"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Terminal turnos cannot be deleted.
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/%d", srv.URL, turno.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerUnknownTurnoIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/999/estado", map[string]any{"estado": "EN_SALA"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCurrentlyServingEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/en-atencion?doctor_id=7&fecha=2024-05-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Nil(t, body["turno"])
}
