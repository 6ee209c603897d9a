package devices

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// Device es un navegador/equipo desde el que un miembro del staff inicia sesión.
type Device struct {
	ID          string
	UserID      string
	Fingerprint string

	Label     string // "Recepción PC 1"
	UserAgent string
	Platform  string
	IP        string

	Status     Status
	ApprovedBy string
	ApprovedAt *time.Time
	LastSeenAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meta son los datos que manda el cliente en el login.
type Meta struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	ClientDeviceID string // id persistido en localStorage por el frontend
}

// Fingerprint es el sha256 hex de los campos normalizados unidos por "|".
func Fingerprint(m Meta) string {
	parts := []string{m.UserAgent, m.AcceptLanguage, m.Platform, m.ClientDeviceID}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
