// Package pacientes keeps the patient directory reception uses to
// autofill bookings.
package pacientes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Paciente is one directory entry, keyed by documento.
type Paciente struct {
	ID            int64     `json:"id"`
	Documento     string    `json:"documento"`
	Nombre        string    `json:"nombre"`
	Telefono      string    `json:"telefono,omitempty"`
	Entidad       string    `json:"entidad,omitempty"`
	Notas         string    `json:"notas,omitempty"`
	CreadoEn      time.Time `json:"creado_en"`
	ActualizadoEn time.Time `json:"actualizado_en"`
}

var (
	// ErrPacienteNotFound indicates the documento or id does not exist.
	ErrPacienteNotFound = errors.New("pacientes: paciente no encontrado")
	// ErrMissingFields rejects a save without documento or nombre.
	ErrMissingFields = errors.New("pacientes: documento y nombre son obligatorios")
)

// Repository defines persistence for the directory.
type Repository interface {
	Upsert(ctx context.Context, p *Paciente) error
	GetByDocumento(ctx context.Context, documento string) (*Paciente, error)
	Search(ctx context.Context, query string, limit int) ([]*Paciente, error)
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the directory in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("pacientes: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("pacientes: querier required")
	}
	return &PostgresRepository{pool: q}
}

const pacienteColumns = `
	id, documento, nombre, COALESCE(telefono, ''), COALESCE(entidad, ''),
	COALESCE(notas, ''), creado_en, actualizado_en`

func scanPaciente(row pgx.Row) (*Paciente, error) {
	var p Paciente
	if err := row.Scan(
		&p.ID, &p.Documento, &p.Nombre, &p.Telefono, &p.Entidad,
		&p.Notas, &p.CreadoEn, &p.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or refreshes the entry for p.Documento.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Paciente) error {
	query := `
		INSERT INTO pacientes (documento, nombre, telefono, entidad, notas)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (documento) DO UPDATE SET
			nombre = EXCLUDED.nombre,
			telefono = EXCLUDED.telefono,
			entidad = EXCLUDED.entidad,
			notas = EXCLUDED.notas,
			actualizado_en = now()
		RETURNING id, creado_en, actualizado_en
	`
	if err := r.pool.QueryRow(ctx, query,
		p.Documento, p.Nombre, p.Telefono, p.Entidad, p.Notas,
	).Scan(&p.ID, &p.CreadoEn, &p.ActualizadoEn); err != nil {
		return fmt.Errorf("pacientes: upsert paciente: %w", err)
	}
	return nil
}

// GetByDocumento fetches one entry.
func (r *PostgresRepository) GetByDocumento(ctx context.Context, documento string) (*Paciente, error) {
	p, err := scanPaciente(r.pool.QueryRow(ctx,
		`SELECT`+pacienteColumns+` FROM pacientes WHERE documento = $1`, documento))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPacienteNotFound
		}
		return nil, fmt.Errorf("pacientes: select paciente: %w", err)
	}
	return p, nil
}

// Search matches documento prefix or nombre substring, case-insensitive.
func (r *PostgresRepository) Search(ctx context.Context, query string, limit int) ([]*Paciente, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	sqlQuery := `SELECT` + pacienteColumns + `
		FROM pacientes
		WHERE documento LIKE $1 || '%' OR nombre ILIKE '%' || $1 || '%'
		ORDER BY nombre ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, sqlQuery, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pacientes: search: %w", err)
	}
	defer rows.Close()

	var out []*Paciente
	for rows.Next() {
		p, err := scanPaciente(rows)
		if err != nil {
			return nil, fmt.Errorf("pacientes: scan paciente: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InMemoryRepository keeps the directory in process memory for tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	nextID    int64
	pacientes map[string]*Paciente
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, pacientes: make(map[string]*Paciente)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, p *Paciente) error {
	if p.Documento == "" || p.Nombre == "" {
		return ErrMissingFields
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.pacientes[p.Documento]; ok {
		p.ID = existing.ID
		p.CreadoEn = existing.CreadoEn
	} else {
		p.ID = r.nextID
		r.nextID++
		p.CreadoEn = now
	}
	p.ActualizadoEn = now
	c := *p
	r.pacientes[p.Documento] = &c
	return nil
}

func (r *InMemoryRepository) GetByDocumento(ctx context.Context, documento string) (*Paciente, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pacientes[documento]
	if !ok {
		return nil, ErrPacienteNotFound
	}
	c := *p
	return &c, nil
}

func (r *InMemoryRepository) Search(ctx context.Context, query string, limit int) ([]*Paciente, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(query)
	var out []*Paciente
	for _, p := range r.pacientes {
		if strings.HasPrefix(p.Documento, query) || strings.Contains(strings.ToLower(p.Nombre), lower) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
