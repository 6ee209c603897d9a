package users

import (
	"context"

	"dental-clinic/internal/ports/auth"
)

type Repository interface {
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// List con role vacío devuelve todos, ordenados por email.
	List(ctx context.Context, role auth.Role) ([]User, error)
}
