package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dental-clinic/internal/domain/inventory"
)

type inventoryRepo struct {
	mu        sync.RWMutex
	items     map[string]inventory.Item
	batches   map[string]inventory.Batch
	movements []inventory.Movement
}

func NewInventoryRepo() inventory.Repository {
	return &inventoryRepo{
		items:   make(map[string]inventory.Item),
		batches: make(map[string]inventory.Batch),
	}
}

func (r *inventoryRepo) CreateItem(ctx context.Context, it inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[it.ID]; exists {
		return ErrDuplicate
	}
	for _, x := range r.items {
		if strings.EqualFold(x.SKU, it.SKU) {
			return ErrDuplicate
		}
	}
	r.items[it.ID] = it
	return nil
}

func (r *inventoryRepo) UpdateItem(ctx context.Context, it inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[it.ID]; !exists {
		return ErrNotFound
	}
	r.items[it.ID] = it
	return nil
}

func (r *inventoryRepo) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return inventory.Item{}, ErrNotFound
	}
	return it, nil
}

func (r *inventoryRepo) GetItemBySKU(ctx context.Context, sku string) (inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, it := range r.items {
		if strings.EqualFold(it.SKU, sku) {
			return it, nil
		}
	}
	return inventory.Item{}, ErrNotFound
}

func (r *inventoryRepo) ListItems(ctx context.Context) ([]inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]inventory.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *inventoryRepo) CreateBatch(ctx context.Context, b inventory.Batch, mv inventory.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[b.ItemID]; !ok {
		return ErrNotFound
	}
	if _, exists := r.batches[b.ID]; exists {
		return ErrDuplicate
	}
	r.batches[b.ID] = b
	r.movements = append(r.movements, mv)
	return nil
}

func (r *inventoryRepo) GetBatch(ctx context.Context, id string) (inventory.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[id]
	if !ok {
		return inventory.Batch{}, ErrNotFound
	}
	return b, nil
}

func (r *inventoryRepo) ListBatches(ctx context.Context, itemID string) ([]inventory.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]inventory.Batch, 0)
	for _, b := range r.batches {
		if itemID == "" || b.ItemID == itemID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// ApplyConsumption valida todos los draws antes de tocar nada.
func (r *inventoryRepo) ApplyConsumption(ctx context.Context, draws []inventory.Draw, movements []inventory.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	need := make(map[string]int, len(draws))
	for _, d := range draws {
		need[d.BatchID] += d.Qty
	}
	for id, qty := range need {
		b, ok := r.batches[id]
		if !ok || b.QtyOnHand < qty {
			return inventory.ErrStockChanged
		}
	}
	for id, qty := range need {
		b := r.batches[id]
		b.QtyOnHand -= qty
		r.batches[id] = b
	}
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *inventoryRepo) ApplyAdjustment(ctx context.Context, batchID string, delta int, mv inventory.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	if b.QtyOnHand+delta < 0 {
		return inventory.ErrStockChanged
	}
	b.QtyOnHand += delta
	r.batches[batchID] = b
	r.movements = append(r.movements, mv)
	return nil
}

func (r *inventoryRepo) ListMovements(ctx context.Context, itemID string) ([]inventory.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]inventory.Movement, 0)
	for _, mv := range r.movements {
		if itemID == "" || mv.ItemID == itemID {
			out = append(out, mv)
		}
	}
	return out, nil
}
