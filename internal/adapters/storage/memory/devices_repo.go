package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/devices"
)

type deviceRepo struct {
	mu   sync.RWMutex
	byID map[string]devices.Device
}

func NewDevicesRepo() devices.Repository {
	return &deviceRepo{byID: make(map[string]devices.Device)}
}

func (r *deviceRepo) Create(ctx context.Context, d devices.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[d.ID]; exists {
		return ErrDuplicate
	}
	// un fingerprint por usuario
	for _, x := range r.byID {
		if x.UserID == d.UserID && x.Fingerprint == d.Fingerprint {
			return ErrDuplicate
		}
	}
	r.byID[d.ID] = d
	return nil
}

func (r *deviceRepo) Update(ctx context.Context, d devices.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[d.ID]; !exists {
		return ErrNotFound
	}
	r.byID[d.ID] = d
	return nil
}

func (r *deviceRepo) GetByID(ctx context.Context, id string) (devices.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return devices.Device{}, ErrNotFound
	}
	return d, nil
}

func (r *deviceRepo) GetByFingerprint(ctx context.Context, userID, fingerprint string) (devices.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.byID {
		if d.UserID == userID && d.Fingerprint == fingerprint {
			return d, nil
		}
	}
	return devices.Device{}, ErrNotFound
}

func (r *deviceRepo) List(ctx context.Context, status devices.Status) ([]devices.Device, error) {
	return r.filter(func(d devices.Device) bool { return status == "" || d.Status == status }), nil
}

func (r *deviceRepo) ListByUser(ctx context.Context, userID string) ([]devices.Device, error) {
	return r.filter(func(d devices.Device) bool { return d.UserID == userID }), nil
}

func (r *deviceRepo) filter(keep func(devices.Device) bool) []devices.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]devices.Device, 0)
	for _, d := range r.byID {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
