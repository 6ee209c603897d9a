package auth

import "context"

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenIssuer emite tokens de sesión a partir de claims.
type TokenIssuer interface {
	Issue(claims Claims) (string, error)
}
