package agenda

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnoNotFound indicates the turno id does not exist.
	ErrTurnoNotFound = errors.New("agenda: turno no encontrado")
	// ErrQueueEmpty indicates there is no EN_SALA turno left to call.
	ErrQueueEmpty = errors.New("agenda: no hay más pacientes en espera")
	// ErrSwapTargetNotFound indicates a reorder found nothing holding the target number.
	ErrSwapTargetNotFound = errors.New("agenda: no hay turno con el número destino para intercambiar")
	// ErrConflict indicates a partition-serialization race the engine could not resolve.
	// Callers should retry the whole operation.
	ErrConflict = errors.New("agenda: conflicto de concurrencia, reintente la operación")
)

// InvalidArgumentError is a caller-fixable input problem, surfaced verbatim.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "agenda: " + e.Reason
}

// InvalidTransitionError rejects an operation the turno's current state forbids.
type InvalidTransitionError struct {
	Estado Estado
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("agenda: %s (estado actual %s)", e.Reason, e.Estado)
}

// SchedulingBlockedError rejects a creation the availability gate vetoed.
type SchedulingBlockedError struct {
	Reason string
}

func (e *SchedulingBlockedError) Error() string {
	if e.Reason == "" {
		return "agenda: el doctor no está disponible en esta fecha"
	}
	return "agenda: " + e.Reason
}
