package electro

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Broadcast(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestScheduler(t *testing.T) (*Scheduler, *InMemoryRepository, *recordingNotifier) {
	t.Helper()
	repo := NewInMemoryRepository()
	repo.AddEquipo(&Equipo{ID: 1, Nombre: "Electromiógrafo", Activo: true})
	notif := &recordingNotifier{}
	return NewScheduler(repo, nil, WithNotifier(notif)), repo, notif
}

func mustCreate(t *testing.T, s *Scheduler, hora, nombre string) *CitaElectro {
	t.Helper()
	c, err := s.Create(context.Background(), &CreateCitaRequest{
		EquipoID:       1,
		Fecha:          "2024-05-01",
		HoraInicio:     hora,
		PacienteNombre: nombre,
	})
	require.NoError(t, err)
	return c
}

func TestSchedulerCreate(t *testing.T) {
	sched, _, notif := newTestScheduler(t)

	c := mustCreate(t, sched, "10:00", "Ana Pérez")
	assert.Equal(t, EstadoProgramado, c.Estado)
	assert.NotZero(t, c.ID)
	assert.True(t, notif.has(EventActualizarLista))
}

func TestSchedulerCreateUnknownEquipo(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	_, err := sched.Create(context.Background(), &CreateCitaRequest{
		EquipoID:       99,
		Fecha:          "2024-05-01",
		HoraInicio:     "10:00",
		PacienteNombre: "Ana",
	})
	assert.ErrorIs(t, err, ErrEquipoNotFound)
}

func TestSchedulerCreateValidation(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	ctx := context.Background()

	var invalid *InvalidArgumentError

	_, err := sched.Create(ctx, &CreateCitaRequest{Fecha: "2024-05-01", HoraInicio: "10:00", PacienteNombre: "A"})
	assert.ErrorAs(t, err, &invalid)

	_, err = sched.Create(ctx, &CreateCitaRequest{EquipoID: 1, Fecha: "2024-05-01", HoraInicio: "10:00"})
	assert.ErrorAs(t, err, &invalid)

	_, err = sched.Create(ctx, &CreateCitaRequest{EquipoID: 1, Fecha: "mañana", HoraInicio: "10:00", PacienteNombre: "A"})
	assert.ErrorAs(t, err, &invalid)

	_, err = sched.Create(ctx, &CreateCitaRequest{EquipoID: 1, Fecha: "2024-05-01", HoraInicio: "10:99", PacienteNombre: "A"})
	assert.ErrorAs(t, err, &invalid)
}

func TestSchedulerSetStateStampsOperator(t *testing.T) {
	sched, repo, notif := newTestScheduler(t)
	ctx := context.Background()

	c := mustCreate(t, sched, "10:00", "Ana Pérez")

	updated, err := sched.SetState(ctx, c.ID, EstadoEnAtencion, "Laura Gómez")
	require.NoError(t, err)
	assert.Equal(t, EstadoEnAtencion, updated.Estado)
	assert.Equal(t, "Laura Gómez", updated.EditadoPorNombre)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laura Gómez", stored.EditadoPorNombre)
	assert.NotNil(t, stored.EditadoEn)
	assert.True(t, notif.has(EventActualizarEquipo))
}

func TestSchedulerTerminalGuard(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := mustCreate(t, sched, "10:00", "Ana Pérez")
	_, err := sched.SetState(ctx, c.ID, EstadoAtendido, "Laura")
	require.NoError(t, err)

	var transition *InvalidTransitionError

	_, err = sched.SetState(ctx, c.ID, EstadoProgramado, "Laura")
	assert.ErrorAs(t, err, &transition)

	err = sched.Delete(ctx, c.ID)
	assert.ErrorAs(t, err, &transition)
}

func TestSchedulerSetStateSameEstadoIsNoop(t *testing.T) {
	sched, repo, _ := newTestScheduler(t)
	ctx := context.Background()

	c := mustCreate(t, sched, "10:00", "Ana Pérez")
	_, err := sched.SetState(ctx, c.ID, EstadoProgramado, "Laura")
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.EditadoPorNombre)
}

func TestSchedulerDelete(t *testing.T) {
	sched, repo, _ := newTestScheduler(t)
	ctx := context.Background()

	c := mustCreate(t, sched, "10:00", "Ana Pérez")
	require.NoError(t, sched.Delete(ctx, c.ID))

	_, err := repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCitaNotFound)
}

func TestSchedulerListOrderedByHoraInicio(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	ctx := context.Background()

	late := mustCreate(t, sched, "15:00", "Tarde")
	early := mustCreate(t, sched, "08:30", "Temprano")
	mid := mustCreate(t, sched, "11:00", "Medio")

	citas, err := sched.List(ctx, 1, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, citas, 3)
	assert.Equal(t, early.ID, citas[0].ID)
	assert.Equal(t, mid.ID, citas[1].ID)
	assert.Equal(t, late.ID, citas[2].ID)
}

func TestSchedulerSetStateUnknownEstado(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	c := mustCreate(t, sched, "10:00", "Ana Pérez")
	_, err := sched.SetState(context.Background(), c.ID, Estado("FANTASMA"), "Laura")
	var invalid *InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}
