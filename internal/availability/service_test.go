package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAvailableUnknownDateDefaultsOpen(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), nil)

	d, err := svc.IsAvailable(context.Background(), 7, "2026-09-15")
	require.NoError(t, err)
	assert.True(t, d.Available)
	assert.Empty(t, d.Reason)
}

func TestIsAvailableClosedDay(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil)

	require.NoError(t, svc.SetDay(context.Background(), &DiaDisponibilidad{
		DoctorID:   7,
		Fecha:      "2026-09-15",
		Disponible: false,
	}))

	d, err := svc.IsAvailable(context.Background(), 7, "2026-09-15")
	require.NoError(t, err)
	assert.False(t, d.Available)
	assert.Equal(t, "el doctor no está disponible en esta fecha", d.Reason)

	// Other doctors and other dates stay open.
	d, err = svc.IsAvailable(context.Background(), 8, "2026-09-15")
	require.NoError(t, err)
	assert.True(t, d.Available)

	d, err = svc.IsAvailable(context.Background(), 7, "2026-09-16")
	require.NoError(t, err)
	assert.True(t, d.Available)
}

func TestIsAvailableOpenDayWithRecord(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil)

	require.NoError(t, svc.SetDay(context.Background(), &DiaDisponibilidad{
		DoctorID:            7,
		Fecha:               "2026-09-15",
		PacientesProinsalud: 10,
		PacientesOtros:      4,
		Disponible:          true,
	}))

	d, err := svc.IsAvailable(context.Background(), 7, "2026-09-15")
	require.NoError(t, err)
	assert.True(t, d.Available)
}

func TestIsAvailableValidation(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), nil)

	_, err := svc.IsAvailable(context.Background(), 0, "2026-09-15")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.IsAvailable(context.Background(), 7, "")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.IsAvailable(context.Background(), 7, "15/09/2026")
	assert.ErrorIs(t, err, ErrBadFecha)
}

func TestSetDayDerivesTotal(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil)

	dia := &DiaDisponibilidad{
		DoctorID:            3,
		Fecha:               "2026-10-01",
		PacientesProinsalud: 12,
		PacientesOtros:      5,
		Disponible:          true,
	}
	require.NoError(t, svc.SetDay(context.Background(), dia))
	assert.Equal(t, 17, dia.TotalPacientes)
	assert.NotZero(t, dia.ID)
}

func TestSetDayUpsertKeepsID(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil)

	first := &DiaDisponibilidad{DoctorID: 3, Fecha: "2026-10-01", Disponible: true}
	require.NoError(t, svc.SetDay(context.Background(), first))

	second := &DiaDisponibilidad{DoctorID: 3, Fecha: "2026-10-01", Disponible: false}
	require.NoError(t, svc.SetDay(context.Background(), second))
	assert.Equal(t, first.ID, second.ID)

	d, err := svc.IsAvailable(context.Background(), 3, "2026-10-01")
	require.NoError(t, err)
	assert.False(t, d.Available)
}

func TestListMonthOrdersByFecha(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil)

	for _, fecha := range []string{"2026-09-20", "2026-09-05", "2026-09-12"} {
		require.NoError(t, svc.SetDay(context.Background(), &DiaDisponibilidad{
			DoctorID: 7, Fecha: fecha, Disponible: true,
		}))
	}
	// A different doctor must not leak into the listing.
	require.NoError(t, svc.SetDay(context.Background(), &DiaDisponibilidad{
		DoctorID: 8, Fecha: "2026-09-10", Disponible: true,
	}))

	dias, err := svc.ListMonth(context.Background(), 7, "2026-09-01", "2026-09-30")
	require.NoError(t, err)
	require.Len(t, dias, 3)
	assert.Equal(t, "2026-09-05", dias[0].Fecha)
	assert.Equal(t, "2026-09-12", dias[1].Fecha)
	assert.Equal(t, "2026-09-20", dias[2].Fecha)
}
