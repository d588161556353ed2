package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	creds map[string]*Credential
}

func (s *stubStore) CredentialByUsuario(ctx context.Context, usuario string) (*Credential, error) {
	cred, ok := s.creds[usuario]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cred, nil
}

type recordingAudit struct {
	acciones []string
}

func (a *recordingAudit) Record(ctx context.Context, userID int64, accion, detalle string) {
	a.acciones = append(a.acciones, accion)
}

func newTestService(t *testing.T, limiter *LoginLimiter) (*Service, *recordingAudit) {
	t.Helper()
	hash, err := HashPassword("secreto123")
	require.NoError(t, err)

	store := &stubStore{creds: map[string]*Credential{
		"laura": {ID: 1, Usuario: "laura", Nombre: "Laura Gómez", Rol: RolRecepcion, PasswordHash: hash, Activo: true},
		"baja":  {ID: 2, Usuario: "baja", Nombre: "Cuenta Inactiva", Rol: RolDoctor, PasswordHash: hash, Activo: false},
	}}
	audit := &recordingAudit{}
	issuer := NewTokenIssuer("test-secret", time.Hour)
	return NewService(store, issuer, limiter, audit, nil), audit
}

func TestLoginSuccess(t *testing.T) {
	svc, audit := newTestService(t, nil)

	result, err := svc.Login(context.Background(), "laura", "secreto123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Laura Gómez", result.Nombre)
	assert.Equal(t, RolRecepcion, result.Rol)
	assert.Contains(t, audit.acciones, "login")
}

func TestLoginRejections(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "laura", "equivocada")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Login(ctx, "desconocido", "secreto123")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Login(ctx, "baja", "secreto123")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLoginLimiter(client, 3, 5*time.Minute)
	svc, _ := newTestService(t, limiter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "laura", "equivocada")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	// Fourth attempt is blocked even with the right password.
	_, err := svc.Login(ctx, "laura", "secreto123")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// The block expires with the window.
	mr.FastForward(5*time.Minute + time.Second)
	result, err := svc.Login(ctx, "laura", "secreto123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLoginLimiter(client, 3, 5*time.Minute)
	svc, _ := newTestService(t, limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "laura", "equivocada")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}
	_, err := svc.Login(ctx, "laura", "secreto123")
	require.NoError(t, err)

	// Counter restarted: two more failures do not block yet.
	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "laura", "equivocada")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}
	_, err = svc.Login(ctx, "laura", "secreto123")
	assert.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(7, "laura", "Laura Gómez", RolRecepcion)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "laura", claims.Usuario)
	assert.Equal(t, RolRecepcion, claims.Rol)
}

func TestTokenVerifyRejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)

	token, err := other.Issue(7, "laura", "Laura Gómez", RolRecepcion)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify("no-es-un-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(7, "laura", "Laura Gómez", RolRecepcion)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
