package users

import (
	"context"
	"errors"
	"strings"

	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// AuditRecorder receives account-change events. Best effort.
type AuditRecorder interface {
	Record(ctx context.Context, userID int64, accion, detalle string)
}

// Service manages accounts and answers the lookups the rest of the
// platform needs: login credentials and doctor consultorios.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *logging.Logger
}

// ServiceOption customizes optional collaborators.
type ServiceOption func(*Service)

// WithAudit wires the account-change audit trail.
func WithAudit(a AuditRecorder) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// NewService wires the users service.
func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("users: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) recordAudit(ctx context.Context, userID int64, accion, detalle string) {
	if s.audit != nil {
		s.audit.Record(ctx, userID, accion, detalle)
	}
}

// Create registers an account with a freshly hashed password.
func (s *Service) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req == nil {
		return nil, &InvalidArgumentError{Reason: "cuerpo de la petición vacío"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Usuario:           strings.TrimSpace(req.Usuario),
		Nombre:            strings.TrimSpace(req.Nombre),
		Rol:               req.Rol,
		NumeroConsultorio: strings.TrimSpace(req.NumeroConsultorio),
		Activo:            true,
		PasswordHash:      hash,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "usuario", u.Usuario, "rol", u.Rol)
	s.recordAudit(ctx, u.ID, "usuario_creado", "cuenta creada con rol "+u.Rol)
	return u, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	if req == nil {
		return nil, &InvalidArgumentError{Reason: "cuerpo de la petición vacío"}
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Nombre != nil {
		if strings.TrimSpace(*req.Nombre) == "" {
			return nil, &InvalidArgumentError{Reason: "nombre no puede quedar vacío"}
		}
		u.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Rol != nil {
		if _, ok := rolesValidos[*req.Rol]; !ok {
			return nil, &InvalidArgumentError{Reason: "rol desconocido"}
		}
		u.Rol = *req.Rol
	}
	if req.NumeroConsultorio != nil {
		u.NumeroConsultorio = strings.TrimSpace(*req.NumeroConsultorio)
	}
	if req.Activo != nil {
		u.Activo = *req.Activo
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return nil, &InvalidArgumentError{Reason: "la contraseña debe tener al menos 6 caracteres"}
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "user_id", u.ID, "usuario", u.Usuario)
	s.recordAudit(ctx, u.ID, "usuario_actualizado", "cuenta modificada")
	return u, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id)
	s.recordAudit(ctx, id, "usuario_eliminado", "cuenta eliminada")
	return nil
}

// Doctors returns active doctor accounts, for agenda pickers.
func (s *Service) Doctors(ctx context.Context) ([]*User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*User
	for _, u := range all {
		if u.Rol == "doctor" && u.Activo {
			out = append(out, u)
		}
	}
	return out, nil
}

// CredentialByUsuario implements the login credential lookup.
func (s *Service) CredentialByUsuario(ctx context.Context, usuario string) (*auth.Credential, error) {
	u, err := s.repo.GetByUsuario(ctx, usuario)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.Credential{
		ID:           u.ID,
		Usuario:      u.Usuario,
		Nombre:       u.Nombre,
		Rol:          u.Rol,
		PasswordHash: u.PasswordHash,
		Activo:       u.Activo,
	}, nil
}

// ConsultorioFor resolves the doctor's consultorio for announcements.
func (s *Service) ConsultorioFor(ctx context.Context, doctorID int64) (string, error) {
	u, err := s.repo.GetByID(ctx, doctorID)
	if err != nil {
		return "", err
	}
	return u.NumeroConsultorio, nil
}
