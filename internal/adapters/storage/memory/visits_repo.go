package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/visits"
)

type visitRepo struct {
	mu   sync.RWMutex
	byID map[string]visits.Visit
}

func NewVisitsRepo() visits.Repository {
	return &visitRepo{byID: make(map[string]visits.Visit)}
}

func (r *visitRepo) Create(ctx context.Context, v visits.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[v.ID]; exists {
		return ErrDuplicate
	}
	r.byID[v.ID] = cloneVisit(v)
	return nil
}

func (r *visitRepo) Update(ctx context.Context, v visits.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[v.ID]; !exists {
		return ErrNotFound
	}
	r.byID[v.ID] = cloneVisit(v)
	return nil
}

func (r *visitRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byID[id]
	if !ok {
		return visits.Visit{}, ErrNotFound
	}
	return cloneVisit(v), nil
}

func (r *visitRepo) GetByAppointment(ctx context.Context, appointmentID string) (visits.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest visits.Visit
		found  bool
	)
	for _, v := range r.byID {
		if appointmentID == "" || v.AppointmentID != appointmentID {
			continue
		}
		if !found || v.CreatedAt.After(latest.CreatedAt) {
			latest, found = v, true
		}
	}
	if !found {
		return visits.Visit{}, ErrNotFound
	}
	return cloneVisit(latest), nil
}

func (r *visitRepo) List(ctx context.Context, f visits.Filter) ([]visits.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]visits.Visit, 0)
	for _, v := range r.byID {
		if f.PatientID != "" && v.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.From != nil && v.StartedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !v.StartedAt.Before(*f.To) {
			continue
		}
		out = append(out, cloneVisit(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return limit(out, f.Limit), nil
}

func cloneVisit(v visits.Visit) visits.Visit {
	v.TeethTreated = append([]string(nil), v.TeethTreated...)
	v.Items = append([]visits.ConsumedItem(nil), v.Items...)
	return v
}
