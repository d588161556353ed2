// Package audit records user activity for traceability: logins, queue
// operations, and account changes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Entry is one immutable activity record.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Accion    string    `json:"accion"`
	Detalle   string    `json:"detalle,omitempty"`
	CreadoEn  time.Time `json:"creado_en"`
}

// Service writes and reads usuario_auditorias rows.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewService creates an audit service. db may be nil; then Record is a
// no-op and the platform runs without the trail.
func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// Record writes one entry. Best effort: failures are logged, never
// returned, so a broken trail cannot block logins or queue mutations.
func (s *Service) Record(ctx context.Context, userID int64, accion, detalle string) {
	if s.db == nil || userID <= 0 || accion == "" {
		return
	}
	query := `
		INSERT INTO usuario_auditorias (user_id, accion, detalle, creado_en)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, accion, nullString(detalle), time.Now().UTC()); err != nil {
		s.logger.Error("failed to record audit entry",
			"user_id", userID, "accion", accion, "error", err)
	}
}

// ListByUser returns a user's latest entries, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, user_id, accion, COALESCE(detalle, ''), creado_en
		FROM usuario_auditorias
		WHERE user_id = $1
		ORDER BY creado_en DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Accion, &e.Detalle, &e.CreadoEn); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
