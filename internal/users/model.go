package users

import (
	"errors"
	"strings"
	"time"
)

// User is a platform account: reception, doctors, electro operators and
// admins. Doctors additionally carry the consultorio announced when
// their patients are called.
type User struct {
	ID                int64     `json:"id"`
	Usuario           string    `json:"usuario"`
	Nombre            string    `json:"nombre"`
	Rol               string    `json:"rol"`
	NumeroConsultorio string    `json:"numero_consultorio,omitempty"`
	Activo            bool      `json:"activo"`
	CreadoEn          time.Time `json:"creado_en"`
	ActualizadoEn     time.Time `json:"actualizado_en"`

	// PasswordHash never serializes.
	PasswordHash string `json:"-"`
}

var (
	// ErrUserNotFound indicates the user id or usuario does not exist.
	ErrUserNotFound = errors.New("users: usuario no encontrado")
	// ErrDuplicateUsuario rejects a second account with the same login.
	ErrDuplicateUsuario = errors.New("users: el nombre de usuario ya existe")
)

// InvalidArgumentError is a caller-fixable input problem.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "users: " + e.Reason
}

var rolesValidos = map[string]struct{}{
	"admin":     {},
	"recepcion": {},
	"electro":   {},
	"doctor":    {},
}

// CreateUserRequest is the request body for registering an account.
type CreateUserRequest struct {
	Usuario           string `json:"usuario"`
	Nombre            string `json:"nombre"`
	Password          string `json:"password"`
	Rol               string `json:"rol"`
	NumeroConsultorio string `json:"numero_consultorio"`
}

// Validate checks required fields.
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Usuario) == "" {
		return &InvalidArgumentError{Reason: "usuario es obligatorio"}
	}
	if strings.TrimSpace(r.Nombre) == "" {
		return &InvalidArgumentError{Reason: "nombre es obligatorio"}
	}
	if len(r.Password) < 6 {
		return &InvalidArgumentError{Reason: "la contraseña debe tener al menos 6 caracteres"}
	}
	if _, ok := rolesValidos[r.Rol]; !ok {
		return &InvalidArgumentError{Reason: "rol desconocido, use admin, recepcion, electro o doctor"}
	}
	if r.Rol == "doctor" && strings.TrimSpace(r.NumeroConsultorio) == "" {
		return &InvalidArgumentError{Reason: "numero_consultorio es obligatorio para doctores"}
	}
	return nil
}

// UpdateUserRequest carries optional field updates.
type UpdateUserRequest struct {
	Nombre            *string `json:"nombre"`
	Password          *string `json:"password"`
	Rol               *string `json:"rol"`
	NumeroConsultorio *string `json:"numero_consultorio"`
	Activo            *bool   `json:"activo"`
}
