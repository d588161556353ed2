package availability

import (
	"errors"
	"time"
)

// DiaDisponibilidad records one doctor's bookability for one calendar day.
// Rows are written by the monthly availability importer; the queue engine
// only ever reads them.
type DiaDisponibilidad struct {
	ID                  int64     `json:"id"`
	DoctorID            int64     `json:"doctor_id"`
	Fecha               string    `json:"fecha"`
	PacientesProinsalud int       `json:"pacientes_proinsalud"`
	PacientesOtros      int       `json:"pacientes_otros"`
	TotalPacientes      int       `json:"total_pacientes"`
	Disponible          bool      `json:"disponible"`
	CreadoEn            time.Time `json:"creado_en"`
	ActualizadoEn       time.Time `json:"actualizado_en"`
}

// Decision is the gate's answer for a (doctor, fecha) booking attempt.
type Decision struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ErrMissingFields rejects an upsert without its identifying keys.
var ErrMissingFields = errors.New("availability: doctor_id y fecha son obligatorios")

// ErrBadFecha rejects a date not in YYYY-MM-DD form.
var ErrBadFecha = errors.New("availability: fecha inválida, se espera YYYY-MM-DD")

// ValidateFecha checks the YYYY-MM-DD wire format used across the API.
func ValidateFecha(fecha string) error {
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return ErrBadFecha
	}
	return nil
}
