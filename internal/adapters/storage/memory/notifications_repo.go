package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/notifications"
)

type notificationRepo struct {
	mu   sync.RWMutex
	byID map[string]notifications.Log
}

func NewNotificationsRepo() notifications.Repository {
	return &notificationRepo{byID: make(map[string]notifications.Log)}
}

func (r *notificationRepo) Create(ctx context.Context, l notifications.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[l.ID]; exists {
		return ErrDuplicate
	}
	r.byID[l.ID] = l
	return nil
}

func (r *notificationRepo) Update(ctx context.Context, l notifications.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[l.ID]; !exists {
		return ErrNotFound
	}
	r.byID[l.ID] = l
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (notifications.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.byID[id]
	if !ok {
		return notifications.Log{}, ErrNotFound
	}
	return l, nil
}

func (r *notificationRepo) List(ctx context.Context, f notifications.LogFilter) ([]notifications.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notifications.Log, 0)
	for _, l := range r.byID {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Channel != "" && l.Channel != f.Channel {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}
