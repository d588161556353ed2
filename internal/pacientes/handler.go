package pacientes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes the patient directory over HTTP.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates the pacientes HTTP handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("pacientes: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/buscar", h.Search)
	r.Get("/{documento}", h.Get)
	r.Put("/", h.Upsert)
	return r
}

// Search matches by documento prefix or nombre substring.
// GET /api/pacientes/buscar?q=perez&limit=10
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q es obligatorio")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.repo.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("paciente search failed", "q", query, "error", err)
		writeError(w, http.StatusInternalServerError, "error buscando pacientes")
		return
	}
	if result == nil {
		result = []*Paciente{}
	}
	writeJSON(w, http.StatusOK, result)
}

// Get fetches one entry by documento.
// GET /api/pacientes/{documento}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	documento := chi.URLParam(r, "documento")
	p, err := h.repo.GetByDocumento(r.Context(), documento)
	if err != nil {
		if errors.Is(err, ErrPacienteNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("paciente lookup failed", "documento", documento, "error", err)
		writeError(w, http.StatusInternalServerError, "error consultando paciente")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Upsert creates or refreshes an entry.
// PUT /api/pacientes
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p Paciente
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if strings.TrimSpace(p.Documento) == "" || strings.TrimSpace(p.Nombre) == "" {
		writeError(w, http.StatusBadRequest, "documento y nombre son obligatorios")
		return
	}
	if err := h.repo.Upsert(r.Context(), &p); err != nil {
		h.logger.Error("paciente upsert failed", "documento", p.Documento, "error", err)
		writeError(w, http.StatusInternalServerError, "error guardando paciente")
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
