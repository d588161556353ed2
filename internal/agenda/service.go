package agenda

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/innarclinica/clinic-platform/internal/availability"
	"github.com/innarclinica/clinic-platform/internal/observability/metrics"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Event names pushed to connected waiting-room screens and reception UIs.
const (
	EventActualizarLista       = "agenda:actualizar-lista"
	EventActualizarConsultorio = "agenda:actualizar-consultorio"
	EventAnunciarSiguiente     = "voz:anunciar-siguiente"
)

// Notifier pushes queue changes to connected clients. Best effort: a
// failed or absent fanout never fails the mutation that triggered it.
type Notifier interface {
	Broadcast(event string, payload any)
}

// AvailabilityGate answers whether a doctor accepts bookings on a date.
type AvailabilityGate interface {
	IsAvailable(ctx context.Context, doctorID int64, fecha string) (availability.Decision, error)
}

// RoomDirectory resolves the consultorio announced when a patient is called.
type RoomDirectory interface {
	ConsultorioFor(ctx context.Context, doctorID int64) (string, error)
}

// CallResult is the outcome of calling the next patient.
type CallResult struct {
	Turno       *Turno `json:"turno"`
	Consultorio string `json:"consultorio,omitempty"`
}

// Engine owns the turno lifecycle for every (doctor, fecha) partition:
// sequential numbering, state transitions, priority reordering and
// queue compaction. All mutations on one partition are serialized.
type Engine struct {
	repo    Repository
	gate    AvailabilityGate
	rooms   RoomDirectory
	notif   Notifier
	locks   *partitionLocks
	logger  *logging.Logger
	metrics *metrics.AgendaMetrics
	tracer  trace.Tracer
}

// EngineOption customizes optional collaborators.
type EngineOption func(*Engine)

// WithRoomDirectory wires consultorio lookup for call-next announcements.
func WithRoomDirectory(rooms RoomDirectory) EngineOption {
	return func(e *Engine) { e.rooms = rooms }
}

// WithNotifier wires the fanout for queue-change events.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notif = n }
}

// WithMetrics wires operation counters and queue-wait histograms.
func WithMetrics(m *metrics.AgendaMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires the queue engine. repo and gate are required.
func NewEngine(repo Repository, gate AvailabilityGate, logger *logging.Logger, opts ...EngineOption) *Engine {
	if repo == nil {
		panic("agenda: repository required")
	}
	if gate == nil {
		panic("agenda: availability gate required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		repo:   repo,
		gate:   gate,
		locks:  newPartitionLocks(),
		logger: logger,
		tracer: otel.Tracer("clinic-platform/agenda"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockAndReload resolves the turno's partition, takes that partition's
// lock, and re-reads the row under it so id-based operations see a
// state no concurrent mutation can invalidate.
func (e *Engine) lockAndReload(ctx context.Context, id int64) (*Turno, func(), error) {
	t, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.locks.acquire(t.DoctorID, t.Fecha)
	t, err = e.repo.GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return t, unlock, nil
}

func (e *Engine) broadcast(event string, payload any) {
	if e.notif != nil {
		e.notif.Broadcast(event, payload)
	}
}

func (e *Engine) observe(operation string, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.ObserveOperation(operation, status)
}

// Create books a new turno in estado PENDIENTE after consulting the
// availability gate. The gate lookup runs before taking the partition
// lock; it is read-only and must not block other partitions.
func (e *Engine) Create(ctx context.Context, req *CreateTurnoRequest) (t *Turno, err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.Create")
	defer span.End()
	defer func() { e.observe("create", err) }()

	if req == nil {
		return nil, &InvalidArgumentError{Reason: "cuerpo de la petición vacío"}
	}
	if err = req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("agenda.doctor_id", req.DoctorID),
		attribute.String("agenda.fecha", req.Fecha),
	)

	decision, err := e.gate.IsAvailable(ctx, req.DoctorID, req.Fecha)
	if err != nil {
		return nil, fmt.Errorf("agenda: consultar disponibilidad: %w", err)
	}
	if !decision.Available {
		return nil, &SchedulingBlockedError{Reason: decision.Reason}
	}

	hora := req.Hora
	t = &Turno{
		DoctorID:          req.DoctorID,
		Fecha:             req.Fecha,
		Hora:              &hora,
		Estado:            EstadoPendiente,
		PacienteNombre:    req.PacienteNombre,
		PacienteDocumento: req.PacienteDocumento,
		PacienteTelefono:  req.PacienteTelefono,
		TipoConsulta:      req.TipoConsulta,
		Entidad:           req.Entidad,
		Notas:             req.Notas,
		Oportunidad:       req.Oportunidad,
		ProgramadoPor:     req.ProgramadoPor,
	}

	unlock := e.locks.acquire(req.DoctorID, req.Fecha)
	defer unlock()

	if err = e.repo.Insert(ctx, t); err != nil {
		return nil, err
	}

	e.logger.Info("turno created",
		"turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha)
	e.broadcast(EventActualizarLista, t)
	return t, nil
}

// AdvanceToQueue moves a PENDIENTE turno into EN_SALA, assigning the
// next sequential number in its partition.
func (e *Engine) AdvanceToQueue(ctx context.Context, id int64) (t *Turno, err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.AdvanceToQueue")
	defer span.End()
	defer func() { e.observe("advance_to_queue", err) }()

	t, unlock, err := e.lockAndReload(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if t.Estado.Terminal() {
		return nil, &InvalidTransitionError{Estado: t.Estado, Reason: "el turno ya finalizó"}
	}
	if t.Queued() {
		return nil, &InvalidTransitionError{Estado: t.Estado, Reason: "el turno ya tiene número asignado"}
	}

	next, err := e.repo.NextNumero(ctx, t.DoctorID, t.Fecha)
	if err != nil {
		return nil, err
	}
	if err = e.repo.EnterQueue(ctx, t.ID, next); err != nil {
		return nil, err
	}
	t.NumeroTurno = &next
	t.Estado = EstadoEnSala

	e.logger.Info("turno queued",
		"turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha, "numero", next)
	e.broadcast(EventActualizarLista, t)
	return t, nil
}

// CallNext transitions the head of the queue to EN_ATENCION. Calling it
// again while a patient is being served returns that patient unchanged.
func (e *Engine) CallNext(ctx context.Context, doctorID int64, fecha string) (res *CallResult, err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.CallNext")
	defer span.End()
	defer func() { e.observe("call_next", err) }()

	if doctorID <= 0 {
		return nil, &InvalidArgumentError{Reason: "doctor_id es obligatorio"}
	}
	if err = ValidateFecha(fecha); err != nil {
		return nil, err
	}

	unlock := e.locks.acquire(doctorID, fecha)
	defer unlock()

	serving, err := e.repo.CurrentlyServing(ctx, doctorID, fecha)
	if err != nil {
		return nil, err
	}
	if serving != nil {
		return e.withConsultorio(ctx, serving), nil
	}

	enSala, err := e.repo.ListEnSala(ctx, doctorID, fecha)
	if err != nil {
		return nil, err
	}
	if len(enSala) == 0 {
		return nil, ErrQueueEmpty
	}
	next := enSala[0]

	if err = e.repo.ClearFromQueue(ctx, next.ID, EstadoEnAtencion, true); err != nil {
		return nil, err
	}
	next.Estado = EstadoEnAtencion
	next.NumeroTurno = nil
	now := time.Now().UTC()
	next.HoraLlamado = &now

	if e.metrics != nil {
		e.metrics.ObserveQueueWait(now.Sub(next.CreadoEn).Seconds())
	}

	if err = e.compactLocked(ctx, doctorID, fecha); err != nil {
		return nil, err
	}

	res = e.withConsultorio(ctx, next)
	e.logger.Info("patient called",
		"turno_id", next.ID, "doctor_id", doctorID, "fecha", fecha,
		"consultorio", res.Consultorio)
	e.broadcast(EventActualizarLista, next)
	e.broadcast(EventActualizarConsultorio, res)
	e.broadcast(EventAnunciarSiguiente, res)
	return res, nil
}

func (e *Engine) withConsultorio(ctx context.Context, t *Turno) *CallResult {
	res := &CallResult{Turno: t}
	if e.rooms == nil {
		return res
	}
	consultorio, err := e.rooms.ConsultorioFor(ctx, t.DoctorID)
	if err != nil {
		// Announcement detail only; the call itself already happened.
		e.logger.Warn("consultorio lookup failed", "doctor_id", t.DoctorID, "error", err)
		return res
	}
	res.Consultorio = consultorio
	return res
}

// MarkAttended finishes the patient currently EN_ATENCION.
func (e *Engine) MarkAttended(ctx context.Context, id int64) (err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.MarkAttended")
	defer span.End()
	defer func() { e.observe("mark_attended", err) }()

	t, unlock, err := e.lockAndReload(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if t.Estado != EstadoEnAtencion {
		return &InvalidTransitionError{Estado: t.Estado, Reason: "el turno no está en atención"}
	}
	if err = e.repo.ClearFromQueue(ctx, t.ID, EstadoAtendido, false); err != nil {
		return err
	}
	if err = e.compactLocked(ctx, t.DoctorID, t.Fecha); err != nil {
		return err
	}

	e.logger.Info("turno attended", "turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha)
	e.broadcast(EventActualizarLista, map[string]any{"id": t.ID, "estado": EstadoAtendido})
	e.broadcast(EventActualizarConsultorio, map[string]any{"doctor_id": t.DoctorID, "fecha": t.Fecha})
	return nil
}

// SetState applies an operator-driven transition. Entering EN_SALA
// without a number assigns one; entering a state outside the queue
// clears the number and compacts the partition.
func (e *Engine) SetState(ctx context.Context, id int64, estado Estado) (t *Turno, err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.SetState")
	defer span.End()
	defer func() { e.observe("set_state", err) }()

	if !estado.Valid() {
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("estado desconocido %q", estado)}
	}

	t, unlock, err := e.lockAndReload(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if t.Estado == estado {
		return t, nil
	}
	if t.Estado.Terminal() {
		return nil, &InvalidTransitionError{Estado: t.Estado, Reason: "el turno ya finalizó"}
	}

	switch estado {
	case EstadoEnSala:
		if t.Queued() {
			if err = e.repo.UpdateEstado(ctx, t.ID, EstadoEnSala); err != nil {
				return nil, err
			}
		} else {
			var next int
			next, err = e.repo.NextNumero(ctx, t.DoctorID, t.Fecha)
			if err != nil {
				return nil, err
			}
			if err = e.repo.EnterQueue(ctx, t.ID, next); err != nil {
				return nil, err
			}
			t.NumeroTurno = &next
		}
		t.Estado = EstadoEnSala

	case EstadoEnAtencion:
		var serving *Turno
		serving, err = e.repo.CurrentlyServing(ctx, t.DoctorID, t.Fecha)
		if err != nil {
			return nil, err
		}
		if serving != nil && serving.ID != t.ID {
			return nil, &InvalidTransitionError{Estado: t.Estado, Reason: "ya hay un paciente en atención"}
		}
		if err = e.repo.ClearFromQueue(ctx, t.ID, EstadoEnAtencion, true); err != nil {
			return nil, err
		}
		if err = e.compactLocked(ctx, t.DoctorID, t.Fecha); err != nil {
			return nil, err
		}
		t.Estado = EstadoEnAtencion
		t.NumeroTurno = nil

	case EstadoPendiente:
		wasQueued := t.Queued()
		if err = e.repo.ClearFromQueue(ctx, t.ID, EstadoPendiente, false); err != nil {
			return nil, err
		}
		if wasQueued {
			if err = e.compactLocked(ctx, t.DoctorID, t.Fecha); err != nil {
				return nil, err
			}
		}
		t.Estado = EstadoPendiente
		t.NumeroTurno = nil

	default:
		// ATENDIDO, CANCELADO, NO_ASISTIO, REPROGRAMADO, COMPLETADO all
		// leave the numbered queue.
		wasQueued := t.Queued()
		if err = e.repo.ClearFromQueue(ctx, t.ID, estado, false); err != nil {
			return nil, err
		}
		if wasQueued {
			if err = e.compactLocked(ctx, t.DoctorID, t.Fecha); err != nil {
				return nil, err
			}
		}
		t.Estado = estado
		t.NumeroTurno = nil
	}

	e.logger.Info("turno state changed",
		"turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha, "estado", estado)
	e.broadcast(EventActualizarLista, t)
	return t, nil
}

// Reorder changes a turno's queue position. Delta mode swaps with the
// neighbor holding the target number; numero mode sets the position
// directly without swap logic.
func (e *Engine) Reorder(ctx context.Context, id int64, delta *int, numero *int) (err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.Reorder")
	defer span.End()
	defer func() { e.observe("reorder", err) }()

	if delta == nil && numero == nil {
		return &InvalidArgumentError{Reason: "se requiere delta o numero"}
	}
	if delta != nil && numero != nil {
		return &InvalidArgumentError{Reason: "delta y numero son excluyentes"}
	}
	if delta != nil && *delta != 1 && *delta != -1 {
		return &InvalidArgumentError{Reason: "delta debe ser 1 o -1"}
	}
	if numero != nil && *numero <= 0 {
		return &InvalidArgumentError{Reason: "numero debe ser positivo"}
	}

	t, unlock, err := e.lockAndReload(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if t.Estado.Terminal() || t.Estado == EstadoEnAtencion {
		return &InvalidTransitionError{Estado: t.Estado, Reason: "el turno no admite cambio de número"}
	}

	if numero != nil {
		if err = e.repo.UpdateNumero(ctx, t.ID, *numero); err != nil {
			return err
		}
		e.broadcast(EventActualizarLista, map[string]any{"id": t.ID, "numero_turno": *numero})
		return nil
	}

	if !t.Queued() {
		return &InvalidTransitionError{Estado: t.Estado, Reason: "el turno aún no tiene número en la cola"}
	}
	current := *t.NumeroTurno
	target := current + *delta
	if target <= 0 {
		return &InvalidArgumentError{Reason: "el turno ya tiene la máxima prioridad"}
	}

	other, err := e.repo.FindByNumero(ctx, t.DoctorID, t.Fecha, target)
	if err != nil {
		return err
	}
	if other == nil {
		return ErrSwapTargetNotFound
	}

	if err = e.repo.SwapNumeros(ctx, t.ID, current, other.ID, target); err != nil {
		return err
	}

	e.logger.Info("turno reordered",
		"turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha,
		"from", current, "to", target, "swapped_with", other.ID)
	e.broadcast(EventActualizarLista, map[string]any{
		"id": t.ID, "numero_turno": target, "swapped_with": other.ID,
	})
	return nil
}

// Delete removes a non-terminal turno and compacts its partition.
func (e *Engine) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := e.tracer.Start(ctx, "agenda.Delete")
	defer span.End()
	defer func() { e.observe("delete", err) }()

	t, unlock, err := e.lockAndReload(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if t.Estado.Terminal() {
		return &InvalidTransitionError{Estado: t.Estado, Reason: "el turno ya finalizó y no puede eliminarse"}
	}
	if err = e.repo.Delete(ctx, t.ID); err != nil {
		return err
	}
	if err = e.compactLocked(ctx, t.DoctorID, t.Fecha); err != nil {
		return err
	}

	e.logger.Info("turno deleted", "turno_id", t.ID, "doctor_id", t.DoctorID, "fecha", t.Fecha)
	e.broadcast(EventActualizarLista, map[string]any{"id": t.ID, "deleted": true})
	return nil
}

// List returns the partition's projection in display order: timed turnos
// first by hora, then by queue number, then id.
func (e *Engine) List(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error) {
	if doctorID <= 0 {
		return nil, &InvalidArgumentError{Reason: "doctor_id es obligatorio"}
	}
	if err := ValidateFecha(fecha); err != nil {
		return nil, err
	}
	return e.repo.ListPartition(ctx, doctorID, fecha)
}

// CurrentlyServing returns the partition's single EN_ATENCION turno, or
// nil when nobody is being served.
func (e *Engine) CurrentlyServing(ctx context.Context, doctorID int64, fecha string) (*CallResult, error) {
	if doctorID <= 0 {
		return nil, &InvalidArgumentError{Reason: "doctor_id es obligatorio"}
	}
	if err := ValidateFecha(fecha); err != nil {
		return nil, err
	}
	t, err := e.repo.CurrentlyServing(ctx, doctorID, fecha)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return e.withConsultorio(ctx, t), nil
}

// compactLocked renumbers the partition's EN_SALA turnos densely 1..k.
// Caller must hold the partition lock.
func (e *Engine) compactLocked(ctx context.Context, doctorID int64, fecha string) error {
	enSala, err := e.repo.ListEnSala(ctx, doctorID, fecha)
	if err != nil {
		return err
	}
	if len(enSala) == 0 {
		return nil
	}
	ids := make([]int64, len(enSala))
	for i, t := range enSala {
		ids[i] = t.ID
	}
	if err := e.repo.Renumber(ctx, ids); err != nil {
		return fmt.Errorf("agenda: compactar cola: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ObserveCompaction()
	}
	return nil
}
