package electro

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/innarclinica/clinic-platform/internal/observability/metrics"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Event names pushed to the electrodiagnostic waiting-room screens.
const (
	EventActualizarLista  = "electro:actualizar-lista"
	EventActualizarEquipo = "electro:actualizar-equipo"
)

// Notifier pushes schedule changes to connected clients, best effort.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Scheduler owns the cita_electro lifecycle: create, state changes with
// operator stamping, and deletion. No numbering and no priority; the
// day's order is fixed by hora_inicio.
type Scheduler struct {
	repo    Repository
	notif   Notifier
	logger  *logging.Logger
	metrics *metrics.ElectroMetrics
	tracer  trace.Tracer
}

// SchedulerOption customizes optional collaborators.
type SchedulerOption func(*Scheduler)

// WithNotifier wires the fanout for schedule-change events.
func WithNotifier(n Notifier) SchedulerOption {
	return func(s *Scheduler) { s.notif = n }
}

// WithMetrics wires operation counters.
func WithMetrics(m *metrics.ElectroMetrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler wires the equipment scheduler.
func NewScheduler(repo Repository, logger *logging.Logger, opts ...SchedulerOption) *Scheduler {
	if repo == nil {
		panic("electro: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("clinic-platform/electro"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) broadcast(event string, payload any) {
	if s.notif != nil {
		s.notif.Broadcast(event, payload)
	}
}

func (s *Scheduler) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveOperation(operation, status)
}

// Create schedules a cita on an existing equipo, estado PROGRAMADO.
func (s *Scheduler) Create(ctx context.Context, req *CreateCitaRequest) (c *CitaElectro, err error) {
	ctx, span := s.tracer.Start(ctx, "electro.Create")
	defer span.End()
	defer func() { s.observe("create", err) }()

	if req == nil {
		return nil, &InvalidArgumentError{Reason: "cuerpo de la petición vacío"}
	}
	if err = req.Validate(); err != nil {
		return nil, err
	}

	if _, err = s.repo.GetEquipo(ctx, req.EquipoID); err != nil {
		return nil, err
	}

	horaInicio := req.HoraInicio
	c = &CitaElectro{
		EquipoID:          req.EquipoID,
		Fecha:             req.Fecha,
		HoraInicio:        &horaInicio,
		Estado:            EstadoProgramado,
		PacienteNombre:    req.PacienteNombre,
		PacienteDocumento: req.PacienteDocumento,
		PacienteTelefono:  req.PacienteTelefono,
		TipoEstudio:       req.TipoEstudio,
		Entidad:           req.Entidad,
		Notas:             req.Notas,
		ProgramadoPor:     req.ProgramadoPor,
	}
	if req.HoraFin != "" {
		horaFin := req.HoraFin
		c.HoraFin = &horaFin
	}

	if err = s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("cita electro created",
		"cita_id", c.ID, "equipo_id", c.EquipoID, "fecha", c.Fecha)
	s.broadcast(EventActualizarLista, c)
	return c, nil
}

// SetState applies an operator transition and stamps the acting
// operator's display name on the row.
func (s *Scheduler) SetState(ctx context.Context, id int64, estado Estado, actorNombre string) (c *CitaElectro, err error) {
	ctx, span := s.tracer.Start(ctx, "electro.SetState")
	defer span.End()
	defer func() { s.observe("set_state", err) }()

	if !estado.Valid() {
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("estado desconocido %q", estado)}
	}

	c, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Estado == estado {
		return c, nil
	}
	if c.Estado.Terminal() {
		return nil, &InvalidTransitionError{Estado: c.Estado, Reason: "la cita ya finalizó"}
	}

	if err = s.repo.UpdateEstado(ctx, id, estado, actorNombre); err != nil {
		return nil, err
	}
	c.Estado = estado
	c.EditadoPorNombre = actorNombre

	s.logger.Info("cita electro state changed",
		"cita_id", c.ID, "equipo_id", c.EquipoID, "estado", estado, "editado_por", actorNombre)
	s.broadcast(EventActualizarLista, c)
	s.broadcast(EventActualizarEquipo, map[string]any{"equipo_id": c.EquipoID, "fecha": c.Fecha})
	return c, nil
}

// Delete removes a non-terminal cita.
func (s *Scheduler) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "electro.Delete")
	defer span.End()
	defer func() { s.observe("delete", err) }()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Estado.Terminal() {
		return &InvalidTransitionError{Estado: c.Estado, Reason: "la cita ya finalizó y no puede eliminarse"}
	}
	if err = s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("cita electro deleted", "cita_id", id, "equipo_id", c.EquipoID)
	s.broadcast(EventActualizarLista, map[string]any{"id": id, "deleted": true})
	return nil
}

// List returns the equipo's citas for one day ordered by hora_inicio.
func (s *Scheduler) List(ctx context.Context, equipoID int64, fecha string) ([]*CitaElectro, error) {
	if equipoID <= 0 {
		return nil, &InvalidArgumentError{Reason: "equipo_id es obligatorio"}
	}
	if fecha == "" {
		return nil, &InvalidArgumentError{Reason: "fecha es obligatoria"}
	}
	return s.repo.ListPartition(ctx, equipoID, fecha)
}

// Equipos returns the active equipment directory.
func (s *Scheduler) Equipos(ctx context.Context) ([]*Equipo, error) {
	return s.repo.ListEquipos(ctx)
}
