package agenda

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores turnos in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("agenda: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("agenda: querier required")
	}
	return &PostgresRepository{pool: q}
}

const turnoColumns = `
	id, doctor_id, numero_turno,
	paciente_nombre, COALESCE(paciente_documento, ''), COALESCE(paciente_telefono, ''),
	to_char(fecha, 'YYYY-MM-DD'), to_char(hora, 'HH24:MI'), estado,
	COALESCE(tipo_consulta, ''), COALESCE(entidad, ''), COALESCE(notas, ''),
	oportunidad, COALESCE(programado_por, ''), hora_llamado, creado_en, actualizado_en`

func scanTurno(row pgx.Row) (*Turno, error) {
	var t Turno
	if err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&t.NumeroTurno,
		&t.PacienteNombre,
		&t.PacienteDocumento,
		&t.PacienteTelefono,
		&t.Fecha,
		&t.Hora,
		&t.Estado,
		&t.TipoConsulta,
		&t.Entidad,
		&t.Notas,
		&t.Oportunidad,
		&t.ProgramadoPor,
		&t.HoraLlamado,
		&t.CreadoEn,
		&t.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTurnos(rows pgx.Rows) ([]*Turno, error) {
	defer rows.Close()
	var out []*Turno
	for rows.Next() {
		t, err := scanTurno(rows)
		if err != nil {
			return nil, fmt.Errorf("agenda: scan turno: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Insert creates a new row and fills id and timestamps.
func (r *PostgresRepository) Insert(ctx context.Context, t *Turno) error {
	query := `
		INSERT INTO turnos (
			doctor_id, numero_turno, paciente_nombre, paciente_documento, paciente_telefono,
			fecha, hora, estado, tipo_consulta, entidad, notas, oportunidad, programado_por
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, creado_en, actualizado_en
	`
	if err := r.pool.QueryRow(ctx, query,
		t.DoctorID,
		t.NumeroTurno,
		t.PacienteNombre,
		t.PacienteDocumento,
		t.PacienteTelefono,
		t.Fecha,
		t.Hora,
		t.Estado,
		t.TipoConsulta,
		t.Entidad,
		t.Notas,
		t.Oportunidad,
		t.ProgramadoPor,
	).Scan(&t.ID, &t.CreadoEn, &t.ActualizadoEn); err != nil {
		return fmt.Errorf("agenda: insert turno: %w", err)
	}
	return nil
}

// GetByID fetches one turno.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Turno, error) {
	query := `SELECT` + turnoColumns + ` FROM turnos WHERE id = $1`
	t, err := scanTurno(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTurnoNotFound
		}
		return nil, fmt.Errorf("agenda: select turno: %w", err)
	}
	return t, nil
}

// ListPartition returns the partition in projection order.
func (r *PostgresRepository) ListPartition(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error) {
	query := `SELECT` + turnoColumns + `
		FROM turnos
		WHERE doctor_id = $1 AND fecha = $2
		ORDER BY (hora IS NULL), hora ASC, (numero_turno IS NULL), numero_turno ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, doctorID, fecha)
	if err != nil {
		return nil, fmt.Errorf("agenda: list partition: %w", err)
	}
	return collectTurnos(rows)
}

// ListEnSala returns the waiting queue ordered by numero then id.
func (r *PostgresRepository) ListEnSala(ctx context.Context, doctorID int64, fecha string) ([]*Turno, error) {
	query := `SELECT` + turnoColumns + `
		FROM turnos
		WHERE doctor_id = $1 AND fecha = $2 AND estado = 'EN_SALA'
		ORDER BY (numero_turno IS NULL), numero_turno ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, doctorID, fecha)
	if err != nil {
		return nil, fmt.Errorf("agenda: list en sala: %w", err)
	}
	return collectTurnos(rows)
}

// CurrentlyServing returns the partition's EN_ATENCION row, or nil.
func (r *PostgresRepository) CurrentlyServing(ctx context.Context, doctorID int64, fecha string) (*Turno, error) {
	query := `SELECT` + turnoColumns + `
		FROM turnos
		WHERE doctor_id = $1 AND fecha = $2 AND estado = 'EN_ATENCION'
		ORDER BY id ASC
		LIMIT 1`
	t, err := scanTurno(r.pool.QueryRow(ctx, query, doctorID, fecha))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("agenda: select en atencion: %w", err)
	}
	return t, nil
}

// NextNumero computes max(numero_turno)+1 over the partition.
func (r *PostgresRepository) NextNumero(ctx context.Context, doctorID int64, fecha string) (int, error) {
	query := `
		SELECT COALESCE(MAX(numero_turno), 0) + 1
		FROM turnos
		WHERE doctor_id = $1 AND fecha = $2`
	var next int
	if err := r.pool.QueryRow(ctx, query, doctorID, fecha).Scan(&next); err != nil {
		return 0, fmt.Errorf("agenda: next numero: %w", err)
	}
	return next, nil
}

// FindByNumero locates the queued turno holding numero, or nil.
func (r *PostgresRepository) FindByNumero(ctx context.Context, doctorID int64, fecha string, numero int) (*Turno, error) {
	query := `SELECT` + turnoColumns + `
		FROM turnos
		WHERE doctor_id = $1 AND fecha = $2 AND numero_turno = $3
		  AND estado IN ('EN_SALA', 'PENDIENTE')
		ORDER BY id ASC
		LIMIT 1`
	t, err := scanTurno(r.pool.QueryRow(ctx, query, doctorID, fecha, numero))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("agenda: find by numero: %w", err)
	}
	return t, nil
}

// EnterQueue sets estado EN_SALA and the assigned number in one statement.
func (r *PostgresRepository) EnterQueue(ctx context.Context, id int64, numero int) error {
	query := `
		UPDATE turnos
		SET estado = 'EN_SALA', numero_turno = $2, actualizado_en = now()
		WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, numero)
	if err != nil {
		return fmt.Errorf("agenda: enter queue: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnoNotFound
	}
	return nil
}

// UpdateEstado sets the estado only.
func (r *PostgresRepository) UpdateEstado(ctx context.Context, id int64, estado Estado) error {
	query := `UPDATE turnos SET estado = $2, actualizado_en = now() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, estado)
	if err != nil {
		return fmt.Errorf("agenda: update estado: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnoNotFound
	}
	return nil
}

// ClearFromQueue sets the estado, nulls the number, and optionally stamps hora_llamado.
func (r *PostgresRepository) ClearFromQueue(ctx context.Context, id int64, estado Estado, stampLlamado bool) error {
	query := `
		UPDATE turnos
		SET estado = $2,
		    numero_turno = NULL,
		    hora_llamado = CASE WHEN $3 THEN now() ELSE hora_llamado END,
		    actualizado_en = now()
		WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, estado, stampLlamado)
	if err != nil {
		return fmt.Errorf("agenda: clear from queue: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnoNotFound
	}
	return nil
}

// UpdateNumero sets the queue number directly.
func (r *PostgresRepository) UpdateNumero(ctx context.Context, id int64, numero int) error {
	query := `UPDATE turnos SET numero_turno = $2, actualizado_en = now() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, numero)
	if err != nil {
		return fmt.Errorf("agenda: update numero: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnoNotFound
	}
	return nil
}

// SwapNumeros exchanges the numbers of two turnos inside one transaction.
// The acting turno parks on a sentinel first so a unique (partition, numero)
// constraint never sees a duplicate mid-swap.
func (r *PostgresRepository) SwapNumeros(ctx context.Context, aID int64, aNumero int, bID int64, bNumero int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agenda: begin swap: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	steps := []struct {
		id     int64
		numero int
	}{
		{aID, 0}, // sentinel, out of the 1..k range
		{bID, aNumero},
		{aID, bNumero},
	}
	for _, step := range steps {
		ct, err := tx.Exec(ctx,
			`UPDATE turnos SET numero_turno = $2, actualizado_en = now() WHERE id = $1`,
			step.id, step.numero)
		if err != nil {
			return fmt.Errorf("agenda: swap numeros: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrTurnoNotFound
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agenda: commit swap: %w", err)
	}
	return nil
}

// Renumber assigns 1..k to ids in order, all inside one transaction.
func (r *PostgresRepository) Renumber(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agenda: begin renumber: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, id := range ids {
		ct, err := tx.Exec(ctx,
			`UPDATE turnos SET numero_turno = $2, actualizado_en = now() WHERE id = $1`,
			id, i+1)
		if err != nil {
			return fmt.Errorf("agenda: renumber: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrTurnoNotFound
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agenda: commit renumber: %w", err)
	}
	return nil
}

// Delete removes the turno.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM turnos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("agenda: delete turno: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnoNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
