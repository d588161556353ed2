package availability

import (
	"context"
	"fmt"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Service answers whether a doctor accepts new appointments on a given day
// and manages the monthly availability calendar.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService wires the availability service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("availability: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Decision outcome message shown to reception when a day is closed.
const reasonNoDisponible = "el doctor no está disponible en esta fecha"

// IsAvailable reports whether the doctor takes appointments on fecha.
// A date with no calendar record counts as available.
func (s *Service) IsAvailable(ctx context.Context, doctorID int64, fecha string) (Decision, error) {
	if doctorID <= 0 || fecha == "" {
		return Decision{}, ErrMissingFields
	}
	if err := ValidateFecha(fecha); err != nil {
		return Decision{}, err
	}

	d, err := s.repo.Get(ctx, doctorID, fecha)
	if err != nil {
		return Decision{}, fmt.Errorf("availability: check: %w", err)
	}
	if d == nil || d.Disponible {
		return Decision{Available: true}, nil
	}
	return Decision{Available: false, Reason: reasonNoDisponible}, nil
}

// ListMonth returns calendar records for the doctor in [desde, hasta].
func (s *Service) ListMonth(ctx context.Context, doctorID int64, desde, hasta string) ([]*DiaDisponibilidad, error) {
	if doctorID <= 0 || desde == "" || hasta == "" {
		return nil, ErrMissingFields
	}
	if err := ValidateFecha(desde); err != nil {
		return nil, err
	}
	if err := ValidateFecha(hasta); err != nil {
		return nil, err
	}
	return s.repo.ListRange(ctx, doctorID, desde, hasta)
}

// SetDay creates or updates one calendar day. TotalPacientes is derived
// from the two counters when the caller leaves it at zero.
func (s *Service) SetDay(ctx context.Context, d *DiaDisponibilidad) error {
	if d == nil || d.DoctorID <= 0 || d.Fecha == "" {
		return ErrMissingFields
	}
	if err := ValidateFecha(d.Fecha); err != nil {
		return err
	}
	if d.TotalPacientes == 0 {
		d.TotalPacientes = d.PacientesProinsalud + d.PacientesOtros
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return err
	}
	s.logger.Info("availability day updated",
		"doctor_id", d.DoctorID,
		"fecha", d.Fecha,
		"disponible", d.Disponible,
	)
	return nil
}
