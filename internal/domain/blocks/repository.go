package blocks

import "context"

type Repository interface {
	Create(ctx context.Context, b Block) error
	Update(ctx context.Context, b Block) error
	GetByID(ctx context.Context, id string) (Block, error)
	// List con status vacío devuelve todos.
	List(ctx context.Context, status Status) ([]Block, error)
}
