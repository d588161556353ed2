package electro

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for citas and the equipment directory.
type Repository interface {
	Insert(ctx context.Context, c *CitaElectro) error
	GetByID(ctx context.Context, id int64) (*CitaElectro, error)
	ListPartition(ctx context.Context, equipoID int64, fecha string) ([]*CitaElectro, error)
	UpdateEstado(ctx context.Context, id int64, estado Estado, editadoPor string) error
	Delete(ctx context.Context, id int64) error
	ListEquipos(ctx context.Context) ([]*Equipo, error)
	GetEquipo(ctx context.Context, id int64) (*Equipo, error)
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores citas in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("electro: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("electro: querier required")
	}
	return &PostgresRepository{pool: q}
}

const citaColumns = `
	id, equipo_id, paciente_nombre,
	COALESCE(paciente_documento, ''), COALESCE(paciente_telefono, ''),
	to_char(fecha, 'YYYY-MM-DD'), to_char(hora_inicio, 'HH24:MI'), to_char(hora_fin, 'HH24:MI'),
	estado, COALESCE(tipo_estudio, ''), COALESCE(entidad, ''), COALESCE(notas, ''),
	COALESCE(programado_por, ''), COALESCE(editado_por_nombre, ''), editado_en,
	creado_en, actualizado_en`

func scanCita(row pgx.Row) (*CitaElectro, error) {
	var c CitaElectro
	if err := row.Scan(
		&c.ID,
		&c.EquipoID,
		&c.PacienteNombre,
		&c.PacienteDocumento,
		&c.PacienteTelefono,
		&c.Fecha,
		&c.HoraInicio,
		&c.HoraFin,
		&c.Estado,
		&c.TipoEstudio,
		&c.Entidad,
		&c.Notas,
		&c.ProgramadoPor,
		&c.EditadoPorNombre,
		&c.EditadoEn,
		&c.CreadoEn,
		&c.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert creates a new cita and fills id and timestamps.
func (r *PostgresRepository) Insert(ctx context.Context, c *CitaElectro) error {
	query := `
		INSERT INTO citas_electro (
			equipo_id, paciente_nombre, paciente_documento, paciente_telefono,
			fecha, hora_inicio, hora_fin, estado, tipo_estudio, entidad, notas, programado_por
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, creado_en, actualizado_en
	`
	if err := r.pool.QueryRow(ctx, query,
		c.EquipoID,
		c.PacienteNombre,
		c.PacienteDocumento,
		c.PacienteTelefono,
		c.Fecha,
		c.HoraInicio,
		c.HoraFin,
		c.Estado,
		c.TipoEstudio,
		c.Entidad,
		c.Notas,
		c.ProgramadoPor,
	).Scan(&c.ID, &c.CreadoEn, &c.ActualizadoEn); err != nil {
		return fmt.Errorf("electro: insert cita: %w", err)
	}
	return nil
}

// GetByID fetches one cita.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*CitaElectro, error) {
	query := `SELECT` + citaColumns + ` FROM citas_electro WHERE id = $1`
	c, err := scanCita(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCitaNotFound
		}
		return nil, fmt.Errorf("electro: select cita: %w", err)
	}
	return c, nil
}

// ListPartition returns the equipo's day ordered by hora_inicio then id.
func (r *PostgresRepository) ListPartition(ctx context.Context, equipoID int64, fecha string) ([]*CitaElectro, error) {
	query := `SELECT` + citaColumns + `
		FROM citas_electro
		WHERE equipo_id = $1 AND fecha = $2
		ORDER BY hora_inicio ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, equipoID, fecha)
	if err != nil {
		return nil, fmt.Errorf("electro: list partition: %w", err)
	}
	defer rows.Close()

	var out []*CitaElectro
	for rows.Next() {
		c, err := scanCita(rows)
		if err != nil {
			return nil, fmt.Errorf("electro: scan cita: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateEstado sets the estado and stamps who edited it.
func (r *PostgresRepository) UpdateEstado(ctx context.Context, id int64, estado Estado, editadoPor string) error {
	query := `
		UPDATE citas_electro
		SET estado = $2, editado_por_nombre = $3, editado_en = now(), actualizado_en = now()
		WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, estado, editadoPor)
	if err != nil {
		return fmt.Errorf("electro: update estado: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCitaNotFound
	}
	return nil
}

// Delete removes the cita.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM citas_electro WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("electro: delete cita: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCitaNotFound
	}
	return nil
}

// ListEquipos returns the active equipment directory.
func (r *PostgresRepository) ListEquipos(ctx context.Context) ([]*Equipo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nombre, activo FROM equipos_electro WHERE activo ORDER BY nombre ASC`)
	if err != nil {
		return nil, fmt.Errorf("electro: list equipos: %w", err)
	}
	defer rows.Close()

	var out []*Equipo
	for rows.Next() {
		var e Equipo
		if err := rows.Scan(&e.ID, &e.Nombre, &e.Activo); err != nil {
			return nil, fmt.Errorf("electro: scan equipo: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetEquipo fetches one equipo.
func (r *PostgresRepository) GetEquipo(ctx context.Context, id int64) (*Equipo, error) {
	var e Equipo
	err := r.pool.QueryRow(ctx,
		`SELECT id, nombre, activo FROM equipos_electro WHERE id = $1`, id).
		Scan(&e.ID, &e.Nombre, &e.Activo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEquipoNotFound
		}
		return nil, fmt.Errorf("electro: select equipo: %w", err)
	}
	return &e, nil
}

// InMemoryRepository keeps citas in process memory for tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	citas   map[int64]*CitaElectro
	equipos map[int64]*Equipo
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nextID:  1,
		citas:   make(map[int64]*CitaElectro),
		equipos: make(map[int64]*Equipo),
	}
}

// AddEquipo seeds the equipment directory.
func (r *InMemoryRepository) AddEquipo(e *Equipo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.equipos[e.ID] = &c
}

func cloneCita(c *CitaElectro) *CitaElectro {
	out := *c
	if c.HoraInicio != nil {
		h := *c.HoraInicio
		out.HoraInicio = &h
	}
	if c.HoraFin != nil {
		h := *c.HoraFin
		out.HoraFin = &h
	}
	if c.EditadoEn != nil {
		e := *c.EditadoEn
		out.EditadoEn = &e
	}
	return &out
}

func (r *InMemoryRepository) Insert(ctx context.Context, c *CitaElectro) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	c.CreadoEn = now
	c.ActualizadoEn = now
	r.citas[c.ID] = cloneCita(c)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*CitaElectro, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.citas[id]
	if !ok {
		return nil, ErrCitaNotFound
	}
	return cloneCita(c), nil
}

func (r *InMemoryRepository) ListPartition(ctx context.Context, equipoID int64, fecha string) ([]*CitaElectro, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*CitaElectro
	for _, c := range r.citas {
		if c.EquipoID == equipoID && c.Fecha == fecha {
			out = append(out, cloneCita(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.HoraInicio == nil) != (b.HoraInicio == nil) {
			return b.HoraInicio == nil
		}
		if a.HoraInicio != nil && b.HoraInicio != nil && *a.HoraInicio != *b.HoraInicio {
			return *a.HoraInicio < *b.HoraInicio
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *InMemoryRepository) UpdateEstado(ctx context.Context, id int64, estado Estado, editadoPor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.citas[id]
	if !ok {
		return ErrCitaNotFound
	}
	now := time.Now().UTC()
	c.Estado = estado
	c.EditadoPorNombre = editadoPor
	c.EditadoEn = &now
	c.ActualizadoEn = now
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.citas[id]; !ok {
		return ErrCitaNotFound
	}
	delete(r.citas, id)
	return nil
}

func (r *InMemoryRepository) ListEquipos(ctx context.Context) ([]*Equipo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Equipo
	for _, e := range r.equipos {
		if e.Activo {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *InMemoryRepository) GetEquipo(ctx context.Context, id int64) (*Equipo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.equipos[id]
	if !ok {
		return nil, ErrEquipoNotFound
	}
	c := *e
	return &c, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
