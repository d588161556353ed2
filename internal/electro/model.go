package electro

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Estado is the lifecycle state of a cita de electrodiagnóstico.
type Estado string

const (
	EstadoProgramado Estado = "PROGRAMADO"
	EstadoEnAtencion Estado = "EN_ATENCION"
	EstadoAtendido   Estado = "ATENDIDO"
	EstadoCancelado  Estado = "CANCELADO"
	EstadoNoAsistio  Estado = "NO_ASISTIO"
)

var estadosValidos = map[Estado]struct{}{
	EstadoProgramado: {},
	EstadoEnAtencion: {},
	EstadoAtendido:   {},
	EstadoCancelado:  {},
	EstadoNoAsistio:  {},
}

// Valid reports whether e is a known estado.
func (e Estado) Valid() bool {
	_, ok := estadosValidos[e]
	return ok
}

// Terminal reports whether e permits no further transitions.
func (e Estado) Terminal() bool {
	return e == EstadoAtendido || e == EstadoCancelado || e == EstadoNoAsistio
}

// Equipo is one electrodiagnostic machine citas are scheduled against.
type Equipo struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Activo bool   `json:"activo"`
}

// CitaElectro is an equipment appointment. There is no queue numbering:
// the day's agenda for one equipo is simply ordered by hora_inicio.
type CitaElectro struct {
	ID                int64      `json:"id"`
	EquipoID          int64      `json:"equipo_id"`
	PacienteNombre    string     `json:"paciente_nombre"`
	PacienteDocumento string     `json:"paciente_documento,omitempty"`
	PacienteTelefono  string     `json:"paciente_telefono,omitempty"`
	Fecha             string     `json:"fecha"`
	HoraInicio        *string    `json:"hora_inicio"`
	HoraFin           *string    `json:"hora_fin,omitempty"`
	Estado            Estado     `json:"estado"`
	TipoEstudio       string     `json:"tipo_estudio,omitempty"`
	Entidad           string     `json:"entidad,omitempty"`
	Notas             string     `json:"notas,omitempty"`
	ProgramadoPor     string     `json:"programado_por,omitempty"`
	EditadoPorNombre  string     `json:"editado_por_nombre,omitempty"`
	EditadoEn         *time.Time `json:"editado_en,omitempty"`
	CreadoEn          time.Time  `json:"creado_en"`
	ActualizadoEn     time.Time  `json:"actualizado_en"`
}

// Sentinel errors for the scheduler.
var (
	ErrCitaNotFound   = errors.New("electro: cita no encontrada")
	ErrEquipoNotFound = errors.New("electro: equipo no encontrado")
)

// InvalidArgumentError is a caller-fixable input problem.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "electro: " + e.Reason
}

// InvalidTransitionError rejects an operation the cita's state forbids.
type InvalidTransitionError struct {
	Estado Estado
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("electro: %s (estado actual %s)", e.Reason, e.Estado)
}

// CreateCitaRequest is the request body for scheduling a cita.
type CreateCitaRequest struct {
	EquipoID          int64  `json:"equipo_id"`
	Fecha             string `json:"fecha"`
	HoraInicio        string `json:"hora_inicio"`
	HoraFin           string `json:"hora_fin"`
	PacienteNombre    string `json:"paciente_nombre"`
	PacienteDocumento string `json:"paciente_documento"`
	PacienteTelefono  string `json:"paciente_telefono"`
	TipoEstudio       string `json:"tipo_estudio"`
	Entidad           string `json:"entidad"`
	Notas             string `json:"notas"`
	ProgramadoPor     string `json:"programado_por"`
}

// Validate checks required fields and formats.
func (r *CreateCitaRequest) Validate() error {
	if r.EquipoID <= 0 {
		return &InvalidArgumentError{Reason: "equipo_id es obligatorio"}
	}
	if strings.TrimSpace(r.PacienteNombre) == "" {
		return &InvalidArgumentError{Reason: "paciente_nombre es obligatorio"}
	}
	if _, err := time.Parse("2006-01-02", r.Fecha); err != nil {
		return &InvalidArgumentError{Reason: "fecha inválida, use YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", r.HoraInicio); err != nil {
		return &InvalidArgumentError{Reason: "hora_inicio inválida, use HH:MM"}
	}
	if r.HoraFin != "" {
		if _, err := time.Parse("15:04", r.HoraFin); err != nil {
			return &InvalidArgumentError{Reason: "hora_fin inválida, use HH:MM"}
		}
	}
	return nil
}
