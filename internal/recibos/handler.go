package recibos

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Handler exposes the receipts API.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP layer for receipts.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("recibos: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the receipt endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listDia)
	r.Post("/", h.create)
	r.Get("/resumen/dia", h.resumenDia)
	r.Get("/resumen/mes", h.resumenMes)
	r.Post("/{id}/anular", h.anular)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req Recibo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if req.CreadoPor == "" {
		req.CreadoPor = auth.ActorNombre(r.Context())
	}
	recibo, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recibo)
}

func (h *Handler) listDia(w http.ResponseWriter, r *http.Request) {
	fecha := r.URL.Query().Get("fecha")
	if fecha == "" {
		fecha = time.Now().Format("2006-01-02")
	}
	recibos, err := h.service.ListDia(r.Context(), fecha)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if recibos == nil {
		recibos = []*Recibo{}
	}
	writeJSON(w, http.StatusOK, recibos)
}

func (h *Handler) resumenDia(w http.ResponseWriter, r *http.Request) {
	fecha := r.URL.Query().Get("fecha")
	if fecha == "" {
		fecha = time.Now().Format("2006-01-02")
	}
	resumen, err := h.service.ResumenDia(r.Context(), fecha)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumen)
}

func (h *Handler) resumenMes(w http.ResponseWriter, r *http.Request) {
	anio, err := strconv.Atoi(r.URL.Query().Get("anio"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "anio inválido")
		return
	}
	mes, err := strconv.Atoi(r.URL.Query().Get("mes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "mes inválido")
		return
	}
	resumen, err := h.service.ResumenMes(r.Context(), anio, mes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumen)
}

func (h *Handler) anular(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := h.service.Anular(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"estado": "anulado"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var invalid *InvalidArgumentError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, ErrReciboNotFound):
		writeError(w, http.StatusNotFound, "recibo no encontrado")
	case errors.Is(err, ErrReciboAnulado):
		writeError(w, http.StatusConflict, "el recibo ya está anulado")
	default:
		h.logger.Error("recibos: error inesperado", "error", err)
		writeError(w, http.StatusInternalServerError, "error interno del servidor")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
