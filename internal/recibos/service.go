package recibos

import (
	"context"
	"fmt"
	"time"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// EventActualizarLista notifies desk views that the receipt list changed.
const EventActualizarLista = "recibo:actualizar-lista"

// Notifier pushes realtime events to connected clients.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Service exposes the cash-desk operations over a Repository.
type Service struct {
	repo   Repository
	notif  Notifier
	logger *logging.Logger
}

// ServiceOption customizes optional collaborators.
type ServiceOption func(*Service)

// WithNotifier wires the realtime hub.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notif = n }
}

// NewService builds the receipts service.
func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("recibos: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a receipt. Fecha defaults to today when empty.
func (s *Service) Create(ctx context.Context, r *Recibo) (*Recibo, error) {
	if r.Fecha == "" {
		r.Fecha = time.Now().Format("2006-01-02")
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("recibo creado",
		"recibo_id", r.ID,
		"monto", r.Monto,
		"metodo_pago", r.MetodoPago,
	)
	s.broadcast(r.Fecha)
	return r, nil
}

// ListDia returns every receipt issued on one date, voided ones included.
func (s *Service) ListDia(ctx context.Context, fecha string) ([]*Recibo, error) {
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return nil, &InvalidArgumentError{Reason: "fecha inválida, use YYYY-MM-DD"}
	}
	return s.repo.ListDia(ctx, fecha)
}

// Anular voids a receipt so it drops out of the totals.
func (s *Service) Anular(ctx context.Context, id int64) error {
	if err := s.repo.Anular(ctx, id); err != nil {
		return err
	}
	s.logger.Info("recibo anulado", "recibo_id", id)
	s.broadcast("")
	return nil
}

// ResumenDia totals one date.
func (s *Service) ResumenDia(ctx context.Context, fecha string) (*ResumenDia, error) {
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return nil, &InvalidArgumentError{Reason: "fecha inválida, use YYYY-MM-DD"}
	}
	return s.repo.ResumenRango(ctx, fecha, fecha)
}

// ResumenMes totals a calendar month.
func (s *Service) ResumenMes(ctx context.Context, anio, mes int) (*ResumenDia, error) {
	if mes < 1 || mes > 12 || anio < 2000 {
		return nil, &InvalidArgumentError{Reason: "mes o año fuera de rango"}
	}
	desde := time.Date(anio, time.Month(mes), 1, 0, 0, 0, 0, time.UTC)
	hasta := desde.AddDate(0, 1, -1)
	resumen, err := s.repo.ResumenRango(ctx,
		desde.Format("2006-01-02"), hasta.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	resumen.Fecha = fmt.Sprintf("%04d-%02d", anio, mes)
	return resumen, nil
}

func (s *Service) broadcast(fecha string) {
	if s.notif == nil {
		return
	}
	s.notif.Broadcast(EventActualizarLista, map[string]any{"fecha": fecha})
}
