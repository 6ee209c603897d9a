package payments

import "context"

type Repository interface {
	Create(ctx context.Context, p Payment) error
	Update(ctx context.Context, p Payment) error
	GetByID(ctx context.Context, id string) (Payment, error)
	GetByVisit(ctx context.Context, visitID string) (Payment, error)
	GetByProviderRef(ctx context.Context, ref string) (Payment, error)
	List(ctx context.Context, f Filter) ([]Payment, error)
}
