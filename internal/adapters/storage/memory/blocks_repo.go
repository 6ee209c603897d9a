package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/blocks"
)

type blockRepo struct {
	mu   sync.RWMutex
	byID map[string]blocks.Block
}

func NewBlocksRepo() blocks.Repository {
	return &blockRepo{byID: make(map[string]blocks.Block)}
}

func (r *blockRepo) Create(ctx context.Context, b blocks.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[b.ID]; exists {
		return ErrDuplicate
	}
	r.byID[b.ID] = b
	return nil
}

func (r *blockRepo) Update(ctx context.Context, b blocks.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[b.ID]; !exists {
		return ErrNotFound
	}
	r.byID[b.ID] = b
	return nil
}

func (r *blockRepo) GetByID(ctx context.Context, id string) (blocks.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return blocks.Block{}, ErrNotFound
	}
	return b, nil
}

// List ordena por CreatedAt: Check se queda con el bloqueo más antiguo.
func (r *blockRepo) List(ctx context.Context, status blocks.Status) ([]blocks.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]blocks.Block, 0)
	for _, b := range r.byID {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
