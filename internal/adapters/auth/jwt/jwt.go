package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"dental-clinic/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("jwt: secret not configured")
	ErrTokenEmpty    = errors.New("jwt: token is empty")
	ErrTokenInvalid  = errors.New("jwt: invalid token")
)

const issuer = "dental-clinic"

type claims struct {
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	gojwt.RegisteredClaims
}

// Manager emite y verifica tokens HS256.
// Implementa auth.AuthVerifier y auth.TokenIssuer.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *Manager) Issue(c auth.Claims) (string, error) {
	if m == nil || len(m.secret) == 0 {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(c.UserID) == "" || !c.Role.Valid() {
		return "", fmt.Errorf("jwt: issue: %w", ErrTokenInvalid)
	}

	now := m.now()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims{
		Role:     string(c.Role),
		Email:    c.Email,
		DeviceID: c.DeviceID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	return tok.SignedString(m.secret)
}

func (m *Manager) Verify(_ context.Context, token string) (auth.Claims, error) {
	if m == nil || len(m.secret) == 0 {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	var out claims
	t, err := gojwt.ParseWithClaims(token, &out, func(t *gojwt.Token) (any, error) {
		return m.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !t.Valid {
		return auth.Claims{}, ErrTokenInvalid
	}

	c := auth.Claims{
		UserID:   strings.TrimSpace(out.Subject),
		Email:    out.Email,
		Role:     auth.Role(out.Role),
		DeviceID: out.DeviceID,
	}
	if c.UserID == "" || !c.Role.Valid() {
		return auth.Claims{}, ErrTokenInvalid
	}
	return c, nil
}
