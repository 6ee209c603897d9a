package patients

import "context"

type Repository interface {
	Create(ctx context.Context, p Patient) error
	Update(ctx context.Context, p Patient) error
	GetByID(ctx context.Context, id string) (Patient, error)
	GetByUserID(ctx context.Context, userID string) (Patient, error)
	// FindUnlinkedByEmail busca una ficha sin usuario con ese email (case-insensitive).
	FindUnlinkedByEmail(ctx context.Context, email string) (Patient, error)
	// Search hace match parcial sobre nombre, apellido, email y teléfono.
	Search(ctx context.Context, q string, limit int) ([]Patient, error)
}
