package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewInMemoryRepository(), nil)
}

func TestCreateUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &CreateUserRequest{
		Usuario:  "laura",
		Nombre:   "Laura Gómez",
		Password: "secreto123",
		Rol:      "recepcion",
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.Activo)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secreto123")))

	// Duplicate login rejected.
	_, err = svc.Create(ctx, &CreateUserRequest{
		Usuario:  "Laura",
		Nombre:   "Otra",
		Password: "secreto123",
		Rol:      "recepcion",
	})
	assert.ErrorIs(t, err, ErrDuplicateUsuario)
}

func TestCreateUserValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var invalid *InvalidArgumentError

	_, err := svc.Create(ctx, &CreateUserRequest{Nombre: "A", Password: "secreto123", Rol: "recepcion"})
	assert.ErrorAs(t, err, &invalid)

	_, err = svc.Create(ctx, &CreateUserRequest{Usuario: "a", Nombre: "A", Password: "corta", Rol: "recepcion"})
	assert.ErrorAs(t, err, &invalid)

	_, err = svc.Create(ctx, &CreateUserRequest{Usuario: "a", Nombre: "A", Password: "secreto123", Rol: "gerente"})
	assert.ErrorAs(t, err, &invalid)

	// Doctors must carry a consultorio.
	_, err = svc.Create(ctx, &CreateUserRequest{Usuario: "dr", Nombre: "Dr", Password: "secreto123", Rol: "doctor"})
	assert.ErrorAs(t, err, &invalid)
}

func TestCredentialByUsuario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateUserRequest{
		Usuario:  "laura",
		Nombre:   "Laura Gómez",
		Password: "secreto123",
		Rol:      "recepcion",
	})
	require.NoError(t, err)

	cred, err := svc.CredentialByUsuario(ctx, "laura")
	require.NoError(t, err)
	assert.Equal(t, created.ID, cred.ID)
	assert.Equal(t, "recepcion", cred.Rol)
	assert.True(t, cred.Activo)

	_, err = svc.CredentialByUsuario(ctx, "nadie")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestConsultorioFor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doctor, err := svc.Create(ctx, &CreateUserRequest{
		Usuario:           "dr.ruiz",
		Nombre:            "Dr. Ruiz",
		Password:          "secreto123",
		Rol:               "doctor",
		NumeroConsultorio: "3",
	})
	require.NoError(t, err)

	consultorio, err := svc.ConsultorioFor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", consultorio)

	_, err = svc.ConsultorioFor(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &CreateUserRequest{
		Usuario:  "laura",
		Nombre:   "Laura Gómez",
		Password: "secreto123",
		Rol:      "recepcion",
	})
	require.NoError(t, err)

	nombre := "Laura G. de Ruiz"
	inactivo := false
	updated, err := svc.Update(ctx, u.ID, &UpdateUserRequest{Nombre: &nombre, Activo: &inactivo})
	require.NoError(t, err)
	assert.Equal(t, nombre, updated.Nombre)
	assert.False(t, updated.Activo)

	// Inactive accounts disappear from the doctor picker but still exist.
	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Activo)
}

func TestDoctorsFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateUserRequest{
		Usuario: "laura", Nombre: "Laura", Password: "secreto123", Rol: "recepcion",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateUserRequest{
		Usuario: "dr.ruiz", Nombre: "Dr. Ruiz", Password: "secreto123", Rol: "doctor", NumeroConsultorio: "3",
	})
	require.NoError(t, err)

	doctors, err := svc.Doctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "dr.ruiz", doctors[0].Usuario)
}

type recordingAudit struct {
	acciones []string
}

func (r *recordingAudit) Record(_ context.Context, _ int64, accion, _ string) {
	r.acciones = append(r.acciones, accion)
}

func TestAccountChangesAreAudited(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(NewInMemoryRepository(), logging.Default(), WithAudit(audit))
	ctx := context.Background()

	u, err := svc.Create(ctx, &CreateUserRequest{
		Usuario: "laura", Nombre: "Laura", Password: "secreto123", Rol: "recepcion",
	})
	require.NoError(t, err)

	nombre := "Laura M."
	_, err = svc.Update(ctx, u.ID, &UpdateUserRequest{Nombre: &nombre})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, u.ID))

	assert.Equal(t, []string{"usuario_creado", "usuario_actualizado", "usuario_eliminado"}, audit.acciones)
}
