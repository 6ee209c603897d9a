package inventory

import "context"

type Repository interface {
	CreateItem(ctx context.Context, it Item) error
	UpdateItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	GetItemBySKU(ctx context.Context, sku string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	// CreateBatch guarda el lote y su movimiento de ingreso juntos.
	CreateBatch(ctx context.Context, b Batch, mv Movement) error
	GetBatch(ctx context.Context, id string) (Batch, error)
	// ListBatches con itemID vacío devuelve todos los lotes.
	ListBatches(ctx context.Context, itemID string) ([]Batch, error)

	// ApplyConsumption descuenta todos los draws o ninguno.
	// Si algún lote ya no tiene stock suficiente devuelve ErrStockChanged.
	ApplyConsumption(ctx context.Context, draws []Draw, movements []Movement) error
	// ApplyAdjustment suma delta (con signo) al lote; ErrStockChanged si quedaría negativo.
	ApplyAdjustment(ctx context.Context, batchID string, delta int, mv Movement) error

	ListMovements(ctx context.Context, itemID string) ([]Movement, error)
}
