package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Credential is the subset of a user the login flow needs.
type Credential struct {
	ID           int64
	Usuario      string
	Nombre       string
	Rol          string
	PasswordHash string
	Activo       bool
}

// CredentialStore looks up login credentials.
type CredentialStore interface {
	CredentialByUsuario(ctx context.Context, usuario string) (*Credential, error)
}

// AuditRecorder logs authentication events. Best effort: a failed audit
// write never blocks a login.
type AuditRecorder interface {
	Record(ctx context.Context, userID int64, accion, detalle string)
}

// ErrBadCredentials covers unknown users, wrong passwords, and disabled
// accounts. One message for all three so the response does not reveal
// which part failed.
var ErrBadCredentials = errors.New("auth: usuario o contraseña incorrectos")

// ErrUserNotFound is returned by CredentialStore implementations.
var ErrUserNotFound = errors.New("auth: usuario no encontrado")

// Service runs the login flow: rate limit, credential check, token issue.
type Service struct {
	store   CredentialStore
	issuer  *TokenIssuer
	limiter *LoginLimiter
	audit   AuditRecorder
	logger  *logging.Logger
}

// NewService wires the auth service. audit may be nil.
func NewService(store CredentialStore, issuer *TokenIssuer, limiter *LoginLimiter, audit AuditRecorder, logger *logging.Logger) *Service {
	if store == nil {
		panic("auth: credential store required")
	}
	if issuer == nil {
		panic("auth: token issuer required")
	}
	if limiter == nil {
		limiter = NewLoginLimiter(nil, 0, 0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, issuer: issuer, limiter: limiter, audit: audit, logger: logger}
}

// LoginResult carries the signed token and the session identity.
type LoginResult struct {
	Token   string `json:"token"`
	UserID  int64  `json:"user_id"`
	Usuario string `json:"usuario"`
	Nombre  string `json:"nombre"`
	Rol     string `json:"rol"`
}

// Login validates credentials and returns a session token.
func (s *Service) Login(ctx context.Context, usuario, password string) (*LoginResult, error) {
	if usuario == "" || password == "" {
		return nil, ErrBadCredentials
	}

	if err := s.limiter.Check(ctx, usuario); err != nil {
		return nil, err
	}

	cred, err := s.store.CredentialByUsuario(ctx, usuario)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.failed(ctx, usuario, 0)
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !cred.Activo {
		s.failed(ctx, usuario, cred.ID)
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.failed(ctx, usuario, cred.ID)
		return nil, ErrBadCredentials
	}

	if err := s.limiter.Reset(ctx, usuario); err != nil {
		s.logger.Warn("failed to reset login attempts", "usuario", usuario, "error", err)
	}

	token, err := s.issuer.Issue(cred.ID, cred.Usuario, cred.Nombre, cred.Rol)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, cred.ID, "login", "inicio de sesión exitoso")
	}
	s.logger.Info("user logged in", "usuario", usuario, "rol", cred.Rol)

	return &LoginResult{
		Token:   token,
		UserID:  cred.ID,
		Usuario: cred.Usuario,
		Nombre:  cred.Nombre,
		Rol:     cred.Rol,
	}, nil
}

func (s *Service) failed(ctx context.Context, usuario string, userID int64) {
	if err := s.limiter.RecordFailure(ctx, usuario); err != nil {
		s.logger.Warn("failed to record login failure", "usuario", usuario, "error", err)
	}
	if s.audit != nil && userID > 0 {
		s.audit.Record(ctx, userID, "login_fallido", "credenciales incorrectas")
	}
	s.logger.Info("login rejected", "usuario", usuario)
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
