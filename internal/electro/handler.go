package electro

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes the equipment scheduler over HTTP.
type Handler struct {
	sched  *Scheduler
	logger *logging.Logger
}

// NewHandler creates the electro HTTP handler.
func NewHandler(sched *Scheduler, logger *logging.Logger) *Handler {
	if sched == nil {
		panic("electro: scheduler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sched: sched, logger: logger}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/equipos", h.Equipos)
	r.Patch("/{id}/estado", h.SetState)
	r.Delete("/{id}", h.Delete)
	return r
}

func citaID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// List returns one equipo's citas for a day.
// GET /api/citas-electro?equipo_id=2&fecha=2026-09-15
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	equipoID, err := strconv.ParseInt(r.URL.Query().Get("equipo_id"), 10, 64)
	fecha := r.URL.Query().Get("fecha")
	if err != nil || equipoID <= 0 || fecha == "" {
		writeError(w, http.StatusBadRequest, "equipo_id y fecha son obligatorios")
		return
	}
	citas, err := h.sched.List(r.Context(), equipoID, fecha)
	if err != nil {
		h.writeSchedulerError(w, r, err)
		return
	}
	if citas == nil {
		citas = []*CitaElectro{}
	}
	writeJSON(w, http.StatusOK, citas)
}

// Create schedules a cita.
// POST /api/citas-electro
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCitaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if req.ProgramadoPor == "" {
		req.ProgramadoPor = auth.ActorNombre(r.Context())
	}
	c, err := h.sched.Create(r.Context(), &req)
	if err != nil {
		h.writeSchedulerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Equipos returns the active equipment directory.
// GET /api/citas-electro/equipos
func (h *Handler) Equipos(w http.ResponseWriter, r *http.Request) {
	equipos, err := h.sched.Equipos(r.Context())
	if err != nil {
		h.writeSchedulerError(w, r, err)
		return
	}
	if equipos == nil {
		equipos = []*Equipo{}
	}
	writeJSON(w, http.StatusOK, equipos)
}

// SetState applies an operator transition, stamping the session user.
// PATCH /api/citas-electro/{id}/estado
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	id, ok := citaID(r)
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
	c, err := h.sched.SetState(r.Context(), id, req.Estado, auth.ActorNombre(r.Context()))
	if err != nil {
		h.writeSchedulerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete removes a non-terminal cita.
// DELETE /api/citas-electro/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := citaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := h.sched.Delete(r.Context(), id); err != nil {
		h.writeSchedulerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) writeSchedulerError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidArg *InvalidArgumentError
	var invalidTransition *InvalidTransitionError

	switch {
	case errors.As(err, &invalidArg):
		writeError(w, http.StatusBadRequest, invalidArg.Error())
	case errors.Is(err, ErrCitaNotFound), errors.Is(err, ErrEquipoNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidTransition):
		writeError(w, http.StatusConflict, invalidTransition.Error())
	default:
		h.logger.Error("electro request failed",
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
