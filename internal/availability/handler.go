package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes the monthly availability calendar over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates the availability HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("availability: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/doctor/{doctorID}", h.ListMonth)
	r.Put("/doctor/{doctorID}", h.SetDay)
	r.Get("/doctor/{doctorID}/check", h.Check)
	return r
}

type setDayRequest struct {
	Fecha               string `json:"fecha"`
	PacientesProinsalud int    `json:"pacientes_proinsalud"`
	PacientesOtros      int    `json:"pacientes_otros"`
	TotalPacientes      int    `json:"total_pacientes"`
	Disponible          bool   `json:"disponible"`
}

// ListMonth returns the calendar between ?desde= and ?hasta=.
// GET /api/disponibilidad/doctor/{doctorID}?desde=2026-09-01&hasta=2026-09-30
func (h *Handler) ListMonth(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || doctorID <= 0 {
		writeError(w, http.StatusBadRequest, "doctor_id inválido")
		return
	}
	desde := r.URL.Query().Get("desde")
	hasta := r.URL.Query().Get("hasta")

	dias, err := h.svc.ListMonth(r.Context(), doctorID, desde, hasta)
	if err != nil {
		if errors.Is(err, ErrMissingFields) || errors.Is(err, ErrBadFecha) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("list availability failed", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "error consultando disponibilidad")
		return
	}
	if dias == nil {
		dias = []*DiaDisponibilidad{}
	}
	writeJSON(w, http.StatusOK, dias)
}

// SetDay upserts one calendar day.
// PUT /api/disponibilidad/doctor/{doctorID}
func (h *Handler) SetDay(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || doctorID <= 0 {
		writeError(w, http.StatusBadRequest, "doctor_id inválido")
		return
	}

	var req setDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	dia := &DiaDisponibilidad{
		DoctorID:            doctorID,
		Fecha:               req.Fecha,
		PacientesProinsalud: req.PacientesProinsalud,
		PacientesOtros:      req.PacientesOtros,
		TotalPacientes:      req.TotalPacientes,
		Disponible:          req.Disponible,
	}
	if err := h.svc.SetDay(r.Context(), dia); err != nil {
		if errors.Is(err, ErrMissingFields) || errors.Is(err, ErrBadFecha) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("set availability failed", "error", err, "doctor_id", doctorID, "fecha", req.Fecha)
		writeError(w, http.StatusInternalServerError, "error guardando disponibilidad")
		return
	}
	writeJSON(w, http.StatusOK, dia)
}

// Check answers whether the doctor takes appointments on ?fecha=.
// GET /api/disponibilidad/doctor/{doctorID}/check?fecha=2026-09-15
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || doctorID <= 0 {
		writeError(w, http.StatusBadRequest, "doctor_id inválido")
		return
	}
	fecha := r.URL.Query().Get("fecha")

	decision, err := h.svc.IsAvailable(r.Context(), doctorID, fecha)
	if err != nil {
		if errors.Is(err, ErrMissingFields) || errors.Is(err, ErrBadFecha) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("availability check failed", "error", err, "doctor_id", doctorID, "fecha", fecha)
		writeError(w, http.StatusInternalServerError, "error consultando disponibilidad")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
