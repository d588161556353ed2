package agenda

import (
	"strings"
	"time"
)

// Estado is the lifecycle state of a turno.
type Estado string

const (
	EstadoPendiente    Estado = "PENDIENTE"
	EstadoEnSala       Estado = "EN_SALA"
	EstadoEnAtencion   Estado = "EN_ATENCION"
	EstadoCompletado   Estado = "COMPLETADO"
	EstadoCancelado    Estado = "CANCELADO"
	EstadoAtendido     Estado = "ATENDIDO"
	EstadoNoAsistio    Estado = "NO_ASISTIO"
	EstadoReprogramado Estado = "REPROGRAMADO"
)

var estadosValidos = map[Estado]struct{}{
	EstadoPendiente:    {},
	EstadoEnSala:       {},
	EstadoEnAtencion:   {},
	EstadoCompletado:   {},
	EstadoCancelado:    {},
	EstadoAtendido:     {},
	EstadoNoAsistio:    {},
	EstadoReprogramado: {},
}

// Valid reports whether e is a known estado.
func (e Estado) Valid() bool {
	_, ok := estadosValidos[e]
	return ok
}

// Terminal reports whether e permits no further transitions or reorders.
func (e Estado) Terminal() bool {
	return e == EstadoAtendido || e == EstadoCancelado || e == EstadoNoAsistio
}

// Turno is a queue ticket for one doctor's agenda on one date.
// Numbering and ordering are local to the (doctor_id, fecha) partition.
type Turno struct {
	ID                int64      `json:"id"`
	DoctorID          int64      `json:"doctor_id"`
	NumeroTurno       *int       `json:"numero_turno"`
	PacienteNombre    string     `json:"paciente_nombre"`
	PacienteDocumento string     `json:"paciente_documento,omitempty"`
	PacienteTelefono  string     `json:"paciente_telefono,omitempty"`
	Fecha             string     `json:"fecha"`
	Hora              *string    `json:"hora"`
	Estado            Estado     `json:"estado"`
	TipoConsulta      string     `json:"tipo_consulta,omitempty"`
	Entidad           string     `json:"entidad,omitempty"`
	Notas             string     `json:"notas,omitempty"`
	Oportunidad       *int       `json:"oportunidad,omitempty"`
	ProgramadoPor     string     `json:"programado_por,omitempty"`
	HoraLlamado       *time.Time `json:"hora_llamado,omitempty"`
	CreadoEn          time.Time  `json:"creado_en"`
	ActualizadoEn     time.Time  `json:"actualizado_en"`
}

// Queued reports whether the turno currently holds a queue number.
func (t *Turno) Queued() bool {
	return t.NumeroTurno != nil
}

// CreateTurnoRequest is the request body for booking a turno.
type CreateTurnoRequest struct {
	DoctorID          int64   `json:"doctor_id"`
	Fecha             string  `json:"fecha"`
	Hora              string  `json:"hora"`
	PacienteNombre    string  `json:"paciente_nombre"`
	PacienteDocumento string  `json:"paciente_documento"`
	PacienteTelefono  string  `json:"paciente_telefono"`
	TipoConsulta      string  `json:"tipo_consulta"`
	Entidad           string  `json:"entidad"`
	Notas             string  `json:"notas"`
	Oportunidad       *int    `json:"oportunidad"`
	ProgramadoPor     string  `json:"programado_por"`
}

// Validate checks required fields and formats.
func (r *CreateTurnoRequest) Validate() error {
	if r.DoctorID <= 0 {
		return &InvalidArgumentError{Reason: "doctor_id es obligatorio"}
	}
	if strings.TrimSpace(r.PacienteNombre) == "" {
		return &InvalidArgumentError{Reason: "paciente_nombre es obligatorio"}
	}
	if err := ValidateFecha(r.Fecha); err != nil {
		return err
	}
	if err := ValidateHora(r.Hora); err != nil {
		return err
	}
	return nil
}

// ValidateFecha checks a calendar date in YYYY-MM-DD form.
func ValidateFecha(fecha string) error {
	if strings.TrimSpace(fecha) == "" {
		return &InvalidArgumentError{Reason: "fecha es obligatoria"}
	}
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return &InvalidArgumentError{Reason: "fecha inválida, use YYYY-MM-DD"}
	}
	return nil
}

// ValidateHora checks a time of day in HH:MM form.
func ValidateHora(hora string) error {
	if strings.TrimSpace(hora) == "" {
		return &InvalidArgumentError{Reason: "hora es obligatoria"}
	}
	if _, err := time.Parse("15:04", hora); err != nil {
		return &InvalidArgumentError{Reason: "hora inválida, use HH:MM"}
	}
	return nil
}
