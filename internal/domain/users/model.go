package users

import (
	"time"

	"dental-clinic/internal/ports/auth"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

type User struct {
	ID           string
	Email        string // siempre en minúsculas
	PasswordHash string
	Role         auth.Role
	Status       Status

	Name  string
	Phone string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}
