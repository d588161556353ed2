package users

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

// Repository defines persistence for user accounts.
type Repository interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsuario(ctx context.Context, usuario string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores users in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("users: querier required")
	}
	return &PostgresRepository{pool: q}
}

const userColumns = `
	id, usuario, nombre, rol, COALESCE(numero_consultorio, ''), activo,
	password_hash, creado_en, actualizado_en`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Usuario,
		&u.Nombre,
		&u.Rol,
		&u.NumeroConsultorio,
		&u.Activo,
		&u.PasswordHash,
		&u.CreadoEn,
		&u.ActualizadoEn,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// Insert creates an account. Duplicate logins surface as ErrDuplicateUsuario.
func (r *PostgresRepository) Insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO usuarios (usuario, nombre, rol, numero_consultorio, activo, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, creado_en, actualizado_en
	`
	err := r.pool.QueryRow(ctx, query,
		u.Usuario, u.Nombre, u.Rol, u.NumeroConsultorio, u.Activo, u.PasswordHash,
	).Scan(&u.ID, &u.CreadoEn, &u.ActualizadoEn)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsuario
		}
		return fmt.Errorf("users: insert usuario: %w", err)
	}
	return nil
}

// GetByID fetches one account.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT`+userColumns+` FROM usuarios WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: select usuario: %w", err)
	}
	return u, nil
}

// GetByUsuario fetches one account by login name.
func (r *PostgresRepository) GetByUsuario(ctx context.Context, usuario string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT`+userColumns+` FROM usuarios WHERE usuario = $1`, usuario))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: select usuario: %w", err)
	}
	return u, nil
}

// List returns every account ordered by nombre.
func (r *PostgresRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+userColumns+` FROM usuarios ORDER BY nombre ASC`)
	if err != nil {
		return nil, fmt.Errorf("users: list usuarios: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan usuario: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update rewrites the mutable columns.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE usuarios
		SET nombre = $2, rol = $3, numero_consultorio = $4, activo = $5,
		    password_hash = $6, actualizado_en = now()
		WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query,
		u.ID, u.Nombre, u.Rol, u.NumeroConsultorio, u.Activo, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("users: update usuario: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the account.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM usuarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete usuario: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// InMemoryRepository keeps accounts in process memory for tests.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, users: make(map[int64]*User)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Usuario, u.Usuario) {
			return ErrDuplicateUsuario
		}
	}
	u.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	u.CreadoEn = now
	u.ActualizadoEn = now
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *InMemoryRepository) GetByUsuario(ctx context.Context, usuario string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Usuario, usuario) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	u.CreadoEn = existing.CreadoEn
	u.ActualizadoEn = time.Now().UTC()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
