package refunds

import "context"

type Repository interface {
	Create(ctx context.Context, r Request) error
	Update(ctx context.Context, r Request) error
	GetByID(ctx context.Context, id string) (Request, error)
	ListByPayment(ctx context.Context, paymentID string) ([]Request, error)
	// List filtra por estado y/o paciente; vacío = todos.
	List(ctx context.Context, status Status, patientID string) ([]Request, error)
}
