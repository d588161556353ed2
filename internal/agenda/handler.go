package agenda

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes the queue engine over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates the agenda HTTP handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("agenda: engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/en-atencion", h.CurrentlyServing)
	r.Post("/llamar-siguiente", h.CallNext)
	r.Post("/marcar-atendido", h.MarkAttended)
	r.Post("/{id}/en-sala", h.AdvanceToQueue)
	r.Patch("/{id}/estado", h.SetState)
	r.Patch("/{id}/numero", h.Reorder)
	r.Delete("/{id}", h.Delete)
	return r
}

func turnoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func partitionParams(r *http.Request) (int64, string, bool) {
	doctorID, err := strconv.ParseInt(r.URL.Query().Get("doctor_id"), 10, 64)
	fecha := r.URL.Query().Get("fecha")
	return doctorID, fecha, err == nil && doctorID > 0 && fecha != ""
}

// List returns the partition projection.
// GET /api/turnos?doctor_id=7&fecha=2026-09-15
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, fecha, ok := partitionParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "doctor_id y fecha son obligatorios")
		return
	}
	turnos, err := h.engine.List(r.Context(), doctorID, fecha)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if turnos == nil {
		turnos = []*Turno{}
	}
	writeJSON(w, http.StatusOK, turnos)
}

// Create books a turno.
// POST /api/turnos
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTurnoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	t, err := h.engine.Create(r.Context(), &req)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// CurrentlyServing returns the EN_ATENCION turno for the partition.
// GET /api/turnos/en-atencion?doctor_id=7&fecha=2026-09-15
func (h *Handler) CurrentlyServing(w http.ResponseWriter, r *http.Request) {
	doctorID, fecha, ok := partitionParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "doctor_id y fecha son obligatorios")
		return
	}
	res, err := h.engine.CurrentlyServing(r.Context(), doctorID, fecha)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusOK, map[string]any{"turno": nil})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type partitionRequest struct {
	DoctorID int64  `json:"doctor_id"`
	Fecha    string `json:"fecha"`
}

// CallNext advances the queue head to EN_ATENCION.
// POST /api/turnos/llamar-siguiente
func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	var req partitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	res, err := h.engine.CallNext(r.Context(), req.DoctorID, req.Fecha)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MarkAttended finishes the patient currently EN_ATENCION.
// POST /api/turnos/marcar-atendido
func (h *Handler) MarkAttended(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id es obligatorio")
		return
	}
	if err := h.engine.MarkAttended(r.Context(), req.ID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AdvanceToQueue moves a PENDIENTE turno to EN_SALA.
// POST /api/turnos/{id}/en-sala
func (h *Handler) AdvanceToQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := turnoID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	t, err := h.engine.AdvanceToQueue(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SetState applies an operator transition.
// PATCH /api/turnos/{id}/estado
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	id, ok := turnoID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	var req struct {
		Estado Estado `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	t, err := h.engine.SetState(r.Context(), id, req.Estado)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Reorder changes a turno's queue position.
// PATCH /api/turnos/{id}/numero with body {"delta":-1} or {"numero":4}
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := turnoID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	var req struct {
		Delta  *int `json:"delta"`
		Numero *int `json:"numero"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if err := h.engine.Reorder(r.Context(), id, req.Delta, req.Numero); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Delete removes a non-terminal turno.
// DELETE /api/turnos/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := turnoID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeEngineError maps engine errors onto HTTP statuses. Expected
// domain errors keep their Spanish message; anything else is a 500.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidArg *InvalidArgumentError
	var invalidTransition *InvalidTransitionError
	var blocked *SchedulingBlockedError

	switch {
	case errors.As(err, &invalidArg):
		writeError(w, http.StatusBadRequest, invalidArg.Error())
	case errors.Is(err, ErrTurnoNotFound), errors.Is(err, ErrSwapTargetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidTransition), errors.Is(err, ErrQueueEmpty), errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &blocked):
		writeError(w, http.StatusConflict, blocked.Error())
	default:
		h.logger.Error("agenda request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "error interno del servidor")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
