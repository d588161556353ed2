// Package recibos records cash-desk receipts and produces the daily and
// monthly totals reception reconciles against.
package recibos

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

// Metodos de pago accepted at the desk.
const (
	MetodoEfectivo      = "EFECTIVO"
	MetodoTarjeta       = "TARJETA"
	MetodoTransferencia = "TRANSFERENCIA"
)

// Recibo is one receipt. Monto is in Colombian pesos, no decimals.
type Recibo struct {
	ID                int64     `json:"id"`
	PacienteNombre    string    `json:"paciente_nombre"`
	PacienteDocumento string    `json:"paciente_documento,omitempty"`
	Concepto          string    `json:"concepto"`
	Monto             int64     `json:"monto"`
	MetodoPago        string    `json:"metodo_pago"`
	Fecha             string    `json:"fecha"`
	CreadoPor         string    `json:"creado_por,omitempty"`
	Anulado           bool      `json:"anulado"`
	CreadoEn          time.Time `json:"creado_en"`
	ActualizadoEn     time.Time `json:"actualizado_en"`
}

// ResumenDia aggregates one day's receipts by payment method.
type ResumenDia struct {
	Fecha     string           `json:"fecha"`
	Total     int64            `json:"total"`
	Cantidad  int              `json:"cantidad"`
	PorMetodo map[string]int64 `json:"por_metodo"`
}

var (
	// ErrReciboNotFound indicates the receipt id does not exist.
	ErrReciboNotFound = errors.New("recibos: recibo no encontrado")
	// ErrReciboAnulado rejects voiding a receipt twice.
	ErrReciboAnulado = errors.New("recibos: el recibo ya está anulado")
)

// InvalidArgumentError is a caller-fixable input problem.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "recibos: " + e.Reason
}

func validateRecibo(r *Recibo) error {
	if strings.TrimSpace(r.PacienteNombre) == "" {
		return &InvalidArgumentError{Reason: "paciente_nombre es obligatorio"}
	}
	if strings.TrimSpace(r.Concepto) == "" {
		return &InvalidArgumentError{Reason: "concepto es obligatorio"}
	}
	if r.Monto <= 0 {
		return &InvalidArgumentError{Reason: "monto debe ser positivo"}
	}
	switch r.MetodoPago {
	case MetodoEfectivo, MetodoTarjeta, MetodoTransferencia:
	default:
		return &InvalidArgumentError{Reason: "metodo_pago desconocido"}
	}
	if _, err := time.Parse("2006-01-02", r.Fecha); err != nil {
		return &InvalidArgumentError{Reason: "fecha inválida, use YYYY-MM-DD"}
	}
	return nil
}

// Repository defines persistence for receipts.
type Repository interface {
	Insert(ctx context.Context, r *Recibo) error
	GetByID(ctx context.Context, id int64) (*Recibo, error)
	ListDia(ctx context.Context, fecha string) ([]*Recibo, error)
	Anular(ctx context.Context, id int64) error
	ResumenRango(ctx context.Context, desde, hasta string) (*ResumenDia, error)
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores receipts in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("recibos: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("recibos: querier required")
	}
	return &PostgresRepository{pool: q}
}

const reciboColumns = `
	id, paciente_nombre, COALESCE(paciente_documento, ''), concepto, monto,
	metodo_pago, to_char(fecha, 'YYYY-MM-DD'), COALESCE(creado_por, ''), anulado,
	creado_en, actualizado_en`

func scanRecibo(row pgx.Row) (*Recibo, error) {
	var r Recibo
	if err := row.Scan(
		&r.ID, &r.PacienteNombre, &r.PacienteDocumento, &r.Concepto, &r.Monto,
		&r.MetodoPago, &r.Fecha, &r.CreadoPor, &r.Anulado,
		&r.CreadoEn, &r.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// Insert creates a receipt after validation.
func (p *PostgresRepository) Insert(ctx context.Context, r *Recibo) error {
	if err := validateRecibo(r); err != nil {
		return err
	}
	query := `
		INSERT INTO recibos (paciente_nombre, paciente_documento, concepto, monto, metodo_pago, fecha, creado_por)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, creado_en, actualizado_en
	`
	if err := p.pool.QueryRow(ctx, query,
		r.PacienteNombre, r.PacienteDocumento, r.Concepto, r.Monto, r.MetodoPago, r.Fecha, r.CreadoPor,
	).Scan(&r.ID, &r.CreadoEn, &r.ActualizadoEn); err != nil {
		return fmt.Errorf("recibos: insert recibo: %w", err)
	}
	return nil
}

// GetByID fetches one receipt.
func (p *PostgresRepository) GetByID(ctx context.Context, id int64) (*Recibo, error) {
	r, err := scanRecibo(p.pool.QueryRow(ctx,
		`SELECT`+reciboColumns+` FROM recibos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReciboNotFound
		}
		return nil, fmt.Errorf("recibos: select recibo: %w", err)
	}
	return r, nil
}

// ListDia returns the day's receipts, newest first.
func (p *PostgresRepository) ListDia(ctx context.Context, fecha string) ([]*Recibo, error) {
	query := `SELECT` + reciboColumns + `
		FROM recibos
		WHERE fecha = $1
		ORDER BY id DESC`
	rows, err := p.pool.Query(ctx, query, fecha)
	if err != nil {
		return nil, fmt.Errorf("recibos: list dia: %w", err)
	}
	defer rows.Close()

	var out []*Recibo
	for rows.Next() {
		r, err := scanRecibo(rows)
		if err != nil {
			return nil, fmt.Errorf("recibos: scan recibo: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Anular voids a receipt. Voided receipts stay listed but leave totals.
func (p *PostgresRepository) Anular(ctx context.Context, id int64) error {
	r, err := p.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.Anulado {
		return ErrReciboAnulado
	}
	ct, err := p.pool.Exec(ctx,
		`UPDATE recibos SET anulado = true, actualizado_en = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("recibos: anular recibo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrReciboNotFound
	}
	return nil
}

// ResumenRango totals non-voided receipts between desde and hasta.
func (p *PostgresRepository) ResumenRango(ctx context.Context, desde, hasta string) (*ResumenDia, error) {
	query := `
		SELECT metodo_pago, COUNT(*), COALESCE(SUM(monto), 0)
		FROM recibos
		WHERE fecha BETWEEN $1 AND $2 AND NOT anulado
		GROUP BY metodo_pago`
	rows, err := p.pool.Query(ctx, query, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("recibos: resumen: %w", err)
	}
	defer rows.Close()

	resumen := &ResumenDia{Fecha: desde, PorMetodo: make(map[string]int64)}
	for rows.Next() {
		var metodo string
		var cantidad int
		var total int64
		if err := rows.Scan(&metodo, &cantidad, &total); err != nil {
			return nil, fmt.Errorf("recibos: scan resumen: %w", err)
		}
		resumen.PorMetodo[metodo] = total
		resumen.Total += total
		resumen.Cantidad += cantidad
	}
	return resumen, rows.Err()
}

// InMemoryRepository keeps receipts in process memory for tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	recibos map[int64]*Recibo
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, recibos: make(map[int64]*Recibo)}
}

func (m *InMemoryRepository) Insert(ctx context.Context, r *Recibo) error {
	if err := validateRecibo(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID
	m.nextID++
	now := time.Now().UTC()
	r.CreadoEn = now
	r.ActualizadoEn = now
	c := *r
	m.recibos[r.ID] = &c
	return nil
}

func (m *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Recibo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.recibos[id]
	if !ok {
		return nil, ErrReciboNotFound
	}
	c := *r
	return &c, nil
}

func (m *InMemoryRepository) ListDia(ctx context.Context, fecha string) ([]*Recibo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Recibo
	for _, r := range m.recibos {
		if r.Fecha == fecha {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *InMemoryRepository) Anular(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.recibos[id]
	if !ok {
		return ErrReciboNotFound
	}
	if r.Anulado {
		return ErrReciboAnulado
	}
	r.Anulado = true
	r.ActualizadoEn = time.Now().UTC()
	return nil
}

func (m *InMemoryRepository) ResumenRango(ctx context.Context, desde, hasta string) (*ResumenDia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resumen := &ResumenDia{Fecha: desde, PorMetodo: make(map[string]int64)}
	for _, r := range m.recibos {
		if r.Anulado || r.Fecha < desde || r.Fecha > hasta {
			continue
		}
		resumen.PorMetodo[r.MetodoPago] += r.Monto
		resumen.Total += r.Monto
		resumen.Cantidad++
	}
	return resumen, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
