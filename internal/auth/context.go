package auth

import "context"

type ctxKey string

const claimsKey ctxKey = "clinica.claims"

// WithClaims stores the session claims in context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts the session claims if present.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	val := ctx.Value(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok && claims != nil
}

// ActorNombre returns the display name of the session user, or empty.
func ActorNombre(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Nombre
	}
	return ""
}
