package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	svc := NewService(db, nil)

	mock.ExpectExec("INSERT INTO usuario_auditorias").
		WithArgs(int64(7), "login", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc.Record(context.Background(), 7, "login", "inicio de sesión exitoso")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordSwallowsDBErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	svc := NewService(db, nil)

	mock.ExpectExec("INSERT INTO usuario_auditorias").
		WillReturnError(context.DeadlineExceeded)

	// Must not panic or surface the failure.
	svc.Record(context.Background(), 7, "login_fallido", "")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordSkipsInvalidInput(t *testing.T) {
	svc := NewService(nil, nil)

	// nil db, zero user, empty accion: all no-ops.
	svc.Record(context.Background(), 0, "login", "")
	svc.Record(context.Background(), 7, "", "")
}

func TestListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	svc := NewService(db, nil)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "accion", "detalle", "creado_en"}).
		AddRow(2, 7, "login", "inicio de sesión exitoso", now).
		AddRow(1, 7, "login_fallido", "credenciales incorrectas", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM usuario_auditorias").
		WithArgs(int64(7), 100).
		WillReturnRows(rows)

	entries, err := svc.ListByUser(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].Accion != "login" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
