package catalog

import "context"

type Repository interface {
	Create(ctx context.Context, s Service) error
	Update(ctx context.Context, s Service) error
	GetByID(ctx context.Context, id string) (Service, error)
	List(ctx context.Context, onlyActive bool) ([]Service, error)
}
