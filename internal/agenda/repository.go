package agenda

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines persistence for turnos. Implementations must make
// SwapNumeros and Renumber atomic: a partial rewrite of a partition's
// numbering is never acceptable.
type Repository interface {
	Insert(ctx context.Context, t *Turno) error
	GetByID(ctx context.Context, id int64) (*Turno, error)
	ListPartition(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error)
	ListEnSala(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error)
	CurrentlyServing(ctx context.Context, doctorID int64, fecha string) (*Turno, error)
	NextNumero(ctx context.Context, doctorID int64, fecha string) (int, error)
	FindByNumero(ctx context.Context, doctorID int64, fecha string, numero int) (*Turno, error)
	EnterQueue(ctx context.Context, id int64, numero int) error
	UpdateEstado(ctx context.Context, id int64, estado Estado) error
	ClearFromQueue(ctx context.Context, id int64, estado Estado, stampLlamado bool) error
	UpdateNumero(ctx context.Context, id int64, numero int) error
	SwapNumeros(ctx context.Context, aID int64, aNumero int, bID int64, bNumero int) error
	Renumber(ctx context.Context, ids []int64) error
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository keeps turnos in process memory. It backs the engine
// tests and local development without a database.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	turnos map[int64]*Turno
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, turnos: make(map[int64]*Turno)}
}

func cloneTurno(t *Turno) *Turno {
	c := *t
	if t.NumeroTurno != nil {
		n := *t.NumeroTurno
		c.NumeroTurno = &n
	}
	if t.Hora != nil {
		h := *t.Hora
		c.Hora = &h
	}
	if t.Oportunidad != nil {
		o := *t.Oportunidad
		c.Oportunidad = &o
	}
	if t.HoraLlamado != nil {
		hl := *t.HoraLlamado
		c.HoraLlamado = &hl
	}
	return &c
}

// Insert stores the turno and assigns its id.
func (r *InMemoryRepository) Insert(ctx context.Context, t *Turno) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	t.CreadoEn = now
	t.ActualizadoEn = now
	r.turnos[t.ID] = cloneTurno(t)
	return nil
}

// GetByID returns the turno or ErrTurnoNotFound.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Turno, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.turnos[id]
	if !ok {
		return nil, ErrTurnoNotFound
	}
	return cloneTurno(t), nil
}

func (r *InMemoryRepository) partition(doctorID int64, fecha string) []*Turno {
	var out []*Turno
	for _, t := range r.turnos {
		if t.DoctorID == doctorID && t.Fecha == fecha {
			out = append(out, cloneTurno(t))
		}
	}
	return out
}

// ListPartition returns every turno in the partition in projection order:
// no-hora last, hora ascending, numero ascending (unnumbered last), id ascending.
func (r *InMemoryRepository) ListPartition(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error) {
	r.mu.RLock()
	out := r.partition(doctorID, fecha)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Hora == nil) != (b.Hora == nil) {
			return b.Hora == nil
		}
		if a.Hora != nil && b.Hora != nil && *a.Hora != *b.Hora {
			return *a.Hora < *b.Hora
		}
		if (a.NumeroTurno == nil) != (b.NumeroTurno == nil) {
			return b.NumeroTurno == nil
		}
		if a.NumeroTurno != nil && b.NumeroTurno != nil && *a.NumeroTurno != *b.NumeroTurno {
			return *a.NumeroTurno < *b.NumeroTurno
		}
		return a.ID < b.ID
	})
	return out, nil
}

// ListEnSala returns the partition's waiting queue ordered by numero then id.
func (r *InMemoryRepository) ListEnSala(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error) {
	r.mu.RLock()
	all := r.partition(doctorID, fecha)
	r.mu.RUnlock()

	var out []*Turno
	for _, t := range all {
		if t.Estado == EstadoEnSala {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.NumeroTurno == nil) != (b.NumeroTurno == nil) {
			return b.NumeroTurno == nil
		}
		if a.NumeroTurno != nil && b.NumeroTurno != nil && *a.NumeroTurno != *b.NumeroTurno {
			return *a.NumeroTurno < *b.NumeroTurno
		}
		return a.ID < b.ID
	})
	return out, nil
}

// CurrentlyServing returns the partition's single EN_ATENCION turno, or nil.
func (r *InMemoryRepository) CurrentlyServing(ctx context.Context, doctorID int64, fecha string) (*Turno, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Turno
	for _, t := range r.turnos {
		if t.DoctorID == doctorID && t.Fecha == fecha && t.Estado == EstadoEnAtencion {
			if found == nil || t.ID < found.ID {
				found = t
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneTurno(found), nil
}

// NextNumero returns max(numero)+1 over the partition, treating no rows as 0.
func (r *InMemoryRepository) NextNumero(ctx context.Context, doctorID int64, fecha string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, t := range r.turnos {
		if t.DoctorID == doctorID && t.Fecha == fecha && t.NumeroTurno != nil && *t.NumeroTurno > max {
			max = *t.NumeroTurno
		}
	}
	return max + 1, nil
}

// FindByNumero returns the queued turno (EN_SALA or PENDIENTE) holding numero, or nil.
func (r *InMemoryRepository) FindByNumero(ctx context.Context, doctorID int64, fecha string, numero int) (*Turno, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.turnos {
		if t.DoctorID != doctorID || t.Fecha != fecha {
			continue
		}
		if t.Estado != EstadoEnSala && t.Estado != EstadoPendiente {
			continue
		}
		if t.NumeroTurno != nil && *t.NumeroTurno == numero {
			return cloneTurno(t), nil
		}
	}
	return nil, nil
}

// EnterQueue sets estado EN_SALA and the queue number in one step.
func (r *InMemoryRepository) EnterQueue(ctx context.Context, id int64, numero int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.turnos[id]
	if !ok {
		return ErrTurnoNotFound
	}
	t.Estado = EstadoEnSala
	t.NumeroTurno = &numero
	t.ActualizadoEn = time.Now().UTC()
	return nil
}

// UpdateEstado sets the estado only.
func (r *InMemoryRepository) UpdateEstado(ctx context.Context, id int64, estado Estado) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.turnos[id]
	if !ok {
		return ErrTurnoNotFound
	}
	t.Estado = estado
	t.ActualizadoEn = time.Now().UTC()
	return nil
}

// ClearFromQueue sets the estado, retires the queue number, and optionally
// stamps hora_llamado. Used when a turno leaves position bookkeeping.
func (r *InMemoryRepository) ClearFromQueue(ctx context.Context, id int64, estado Estado, stampLlamado bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.turnos[id]
	if !ok {
		return ErrTurnoNotFound
	}
	now := time.Now().UTC()
	t.Estado = estado
	t.NumeroTurno = nil
	if stampLlamado {
		t.HoraLlamado = &now
	}
	t.ActualizadoEn = now
	return nil
}

// UpdateNumero sets the queue number directly.
func (r *InMemoryRepository) UpdateNumero(ctx context.Context, id int64, numero int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.turnos[id]
	if !ok {
		return ErrTurnoNotFound
	}
	t.NumeroTurno = &numero
	t.ActualizadoEn = time.Now().UTC()
	return nil
}

// SwapNumeros exchanges the queue numbers of two turnos atomically.
func (r *InMemoryRepository) SwapNumeros(ctx context.Context, aID int64, aNumero int, bID int64, bNumero int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.turnos[aID]
	if !ok {
		return ErrTurnoNotFound
	}
	b, ok := r.turnos[bID]
	if !ok {
		return ErrTurnoNotFound
	}
	now := time.Now().UTC()
	a.NumeroTurno = &bNumero
	b.NumeroTurno = &aNumero
	a.ActualizadoEn = now
	b.ActualizadoEn = now
	return nil
}

// Renumber assigns 1..k to the given ids in order, atomically.
func (r *InMemoryRepository) Renumber(ctx context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if _, ok := r.turnos[id]; !ok {
			return ErrTurnoNotFound
		}
	}
	now := time.Now().UTC()
	for i, id := range ids {
		n := i + 1
		r.turnos[id].NumeroTurno = &n
		r.turnos[id].ActualizadoEn = now
	}
	return nil
}

// Delete removes the turno.
func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.turnos[id]; !ok {
		return ErrTurnoNotFound
	}
	delete(r.turnos, id)
	return nil
}
