package availability

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

// Repository defines persistence for per-day availability records.
type Repository interface {
	Get(ctx context.Context, doctorID int64, fecha string) (*DiaDisponibilidad, error)
	ListRange(ctx context.Context, doctorID int64, desde, hasta string) ([]*DiaDisponibilidad, error)
	Upsert(ctx context.Context, d *DiaDisponibilidad) error
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores availability in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("availability: querier required")
	}
	return &PostgresRepository{pool: q}
}

const diaColumns = `
	id, doctor_id, to_char(fecha, 'YYYY-MM-DD'),
	pacientes_proinsalud, pacientes_otros, total_pacientes, disponible,
	creado_en, actualizado_en`

func scanDia(row pgx.Row) (*DiaDisponibilidad, error) {
	var d DiaDisponibilidad
	if err := row.Scan(
		&d.ID,
		&d.DoctorID,
		&d.Fecha,
		&d.PacientesProinsalud,
		&d.PacientesOtros,
		&d.TotalPacientes,
		&d.Disponible,
		&d.CreadoEn,
		&d.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Get returns the record for (doctor, fecha), or nil when none exists.
func (r *PostgresRepository) Get(ctx context.Context, doctorID int64, fecha string) (*DiaDisponibilidad, error) {
	query := `SELECT` + diaColumns + `
		FROM doctor_disponibilidad_mensual
		WHERE doctor_id = $1 AND fecha = $2`
	d, err := scanDia(r.pool.QueryRow(ctx, query, doctorID, fecha))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("availability: select dia: %w", err)
	}
	return d, nil
}

// ListRange returns records for the doctor between desde and hasta inclusive.
func (r *PostgresRepository) ListRange(ctx context.Context, doctorID int64, desde, hasta string) ([]*DiaDisponibilidad, error) {
	query := `SELECT` + diaColumns + `
		FROM doctor_disponibilidad_mensual
		WHERE doctor_id = $1 AND fecha BETWEEN $2 AND $3
		ORDER BY fecha ASC`
	rows, err := r.pool.Query(ctx, query, doctorID, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("availability: list range: %w", err)
	}
	defer rows.Close()

	var out []*DiaDisponibilidad
	for rows.Next() {
		d, err := scanDia(rows)
		if err != nil {
			return nil, fmt.Errorf("availability: scan dia: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the (doctor, fecha) record.
func (r *PostgresRepository) Upsert(ctx context.Context, d *DiaDisponibilidad) error {
	query := `
		INSERT INTO doctor_disponibilidad_mensual
			(doctor_id, fecha, pacientes_proinsalud, pacientes_otros, total_pacientes, disponible)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, fecha) DO UPDATE SET
			pacientes_proinsalud = EXCLUDED.pacientes_proinsalud,
			pacientes_otros = EXCLUDED.pacientes_otros,
			total_pacientes = EXCLUDED.total_pacientes,
			disponible = EXCLUDED.disponible,
			actualizado_en = now()
		RETURNING id, creado_en, actualizado_en
	`
	if err := r.pool.QueryRow(ctx, query,
		d.DoctorID,
		d.Fecha,
		d.PacientesProinsalud,
		d.PacientesOtros,
		d.TotalPacientes,
		d.Disponible,
	).Scan(&d.ID, &d.CreadoEn, &d.ActualizadoEn); err != nil {
		return fmt.Errorf("availability: upsert dia: %w", err)
	}
	return nil
}

// InMemoryRepository keeps availability in process memory for tests.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	dias   map[string]*DiaDisponibilidad
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, dias: make(map[string]*DiaDisponibilidad)}
}

func diaKey(doctorID int64, fecha string) string {
	return fmt.Sprintf("%d|%s", doctorID, fecha)
}

func (r *InMemoryRepository) Get(ctx context.Context, doctorID int64, fecha string) (*DiaDisponibilidad, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dias[diaKey(doctorID, fecha)]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *InMemoryRepository) ListRange(ctx context.Context, doctorID int64, desde, hasta string) ([]*DiaDisponibilidad, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*DiaDisponibilidad
	for _, d := range r.dias {
		if d.DoctorID == doctorID && d.Fecha >= desde && d.Fecha <= hasta {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fecha < out[j].Fecha })
	return out, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, d *DiaDisponibilidad) error {
	if d.DoctorID <= 0 || d.Fecha == "" {
		return ErrMissingFields
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := diaKey(d.DoctorID, d.Fecha)
	if existing, ok := r.dias[key]; ok {
		d.ID = existing.ID
		d.CreadoEn = existing.CreadoEn
	} else {
		d.ID = r.nextID
		r.nextID++
		d.CreadoEn = now
	}
	d.ActualizadoEn = now
	c := *d
	r.dias[key] = &c
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
