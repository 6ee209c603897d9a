package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/catalog"
)

type catalogRepo struct {
	mu   sync.RWMutex
	byID map[string]catalog.Service
}

func NewCatalogRepo() catalog.Repository {
	return &catalogRepo{byID: make(map[string]catalog.Service)}
}

func (r *catalogRepo) Create(ctx context.Context, s catalog.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ID]; exists {
		return ErrDuplicate
	}
	r.byID[s.ID] = s
	return nil
}

func (r *catalogRepo) Update(ctx context.Context, s catalog.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ID]; !exists {
		return ErrNotFound
	}
	r.byID[s.ID] = s
	return nil
}

func (r *catalogRepo) GetByID(ctx context.Context, id string) (catalog.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return catalog.Service{}, ErrNotFound
	}
	return s, nil
}

func (r *catalogRepo) List(ctx context.Context, onlyActive bool) ([]catalog.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]catalog.Service, 0)
	for _, s := range r.byID {
		if !onlyActive || s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
