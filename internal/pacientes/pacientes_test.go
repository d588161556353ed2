package pacientes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertKeepsIdentity(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := &Paciente{Documento: "10203040", Nombre: "Ana Pérez", Telefono: "3001112233"}
	require.NoError(t, repo.Upsert(ctx, first))
	assert.NotZero(t, first.ID)

	second := &Paciente{Documento: "10203040", Nombre: "Ana Pérez Gómez"}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetByDocumento(ctx, "10203040")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez Gómez", got.Nombre)
}

func TestUpsertValidation(t *testing.T) {
	repo := NewInMemoryRepository()

	err := repo.Upsert(context.Background(), &Paciente{Nombre: "Sin Documento"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestGetUnknownDocumento(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByDocumento(context.Background(), "999")
	assert.ErrorIs(t, err, ErrPacienteNotFound)
}

func TestSearch(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &Paciente{Documento: "10203040", Nombre: "Ana Pérez"}))
	require.NoError(t, repo.Upsert(ctx, &Paciente{Documento: "50607080", Nombre: "Luis Gómez"}))

	// Documento prefix.
	result, err := repo.Search(ctx, "102", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Ana Pérez", result[0].Nombre)

	// Nombre substring, case-insensitive.
	result, err = repo.Search(ctx, "gómez", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Luis Gómez", result[0].Nombre)

	result, err = repo.Search(ctx, "nadie", 10)
	require.NoError(t, err)
	assert.Empty(t, result)
}
