package devices

import "context"

type Repository interface {
	Create(ctx context.Context, d Device) error
	Update(ctx context.Context, d Device) error
	GetByID(ctx context.Context, id string) (Device, error)
	GetByFingerprint(ctx context.Context, userID, fingerprint string) (Device, error)
	// List con status vacío devuelve todos.
	List(ctx context.Context, status Status) ([]Device, error)
	ListByUser(ctx context.Context, userID string) ([]Device, error)
}
