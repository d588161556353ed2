package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles known to the platform.
const (
	RolAdmin     = "admin"
	RolRecepcion = "recepcion"
	RolElectro   = "electro"
	RolDoctor    = "doctor"
)

// Claims is the session payload embedded in every token.
type Claims struct {
	UserID  int64  `json:"user_id"`
	Usuario string `json:"usuario"`
	Nombre  string `json:"nombre"`
	Rol     string `json:"rol"`
	jwt.RegisteredClaims
}

// ErrInvalidToken covers malformed, expired and mis-signed tokens.
var ErrInvalidToken = errors.New("auth: token inválido o expirado")

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
}

// NewTokenIssuer creates an issuer. The secret must be non-empty.
func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	if secret == "" {
		panic("auth: session secret required")
	}
	if duration == 0 {
		duration = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), duration: duration}
}

// Issue signs a token for the user.
func (i *TokenIssuer) Issue(userID int64, usuario, nombre, rol string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:  userID,
		Usuario: usuario,
		Nombre:  nombre,
		Rol:     rol,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   usuario,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
