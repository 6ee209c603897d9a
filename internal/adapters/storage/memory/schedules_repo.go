package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dental-clinic/internal/domain/schedules"
)

type scheduleRepo struct {
	mu       sync.RWMutex
	dentists map[string]schedules.Dentist
	entries  map[string][]schedules.Entry // por dentista
	closures map[string]schedules.Closure // por fecha
}

func NewSchedulesRepo() schedules.Repository {
	return &scheduleRepo{
		dentists: make(map[string]schedules.Dentist),
		entries:  make(map[string][]schedules.Entry),
		closures: make(map[string]schedules.Closure),
	}
}

func (r *scheduleRepo) CreateDentist(ctx context.Context, d schedules.Dentist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dentists[d.ID]; exists {
		return ErrDuplicate
	}
	for _, x := range r.dentists {
		if strings.EqualFold(x.Code, d.Code) {
			return ErrDuplicate
		}
	}
	r.dentists[d.ID] = d
	return nil
}

func (r *scheduleRepo) UpdateDentist(ctx context.Context, d schedules.Dentist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dentists[d.ID]; !exists {
		return ErrNotFound
	}
	r.dentists[d.ID] = d
	return nil
}

func (r *scheduleRepo) GetDentist(ctx context.Context, id string) (schedules.Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dentists[id]
	if !ok {
		return schedules.Dentist{}, ErrNotFound
	}
	return d, nil
}

func (r *scheduleRepo) ListDentists(ctx context.Context) ([]schedules.Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedules.Dentist, 0, len(r.dentists))
	for _, d := range r.dentists {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *scheduleRepo) ReplaceWeek(ctx context.Context, dentistID string, entries []schedules.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dentists[dentistID]; !ok {
		return ErrNotFound
	}
	r.entries[dentistID] = append([]schedules.Entry(nil), entries...)
	return nil
}

func (r *scheduleRepo) ListEntries(ctx context.Context) ([]schedules.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedules.Entry, 0)
	for _, es := range r.entries {
		out = append(out, es...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].DentistID < out[j].DentistID
	})
	return out, nil
}

func (r *scheduleRepo) AddClosure(ctx context.Context, c schedules.Closure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.closures[c.Date]; exists {
		return ErrDuplicate
	}
	r.closures[c.Date] = c
	return nil
}

func (r *scheduleRepo) RemoveClosure(ctx context.Context, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.closures[date]; !exists {
		return ErrNotFound
	}
	delete(r.closures, date)
	return nil
}

func (r *scheduleRepo) GetClosure(ctx context.Context, date string) (schedules.Closure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.closures[date]
	if !ok {
		return schedules.Closure{}, ErrNotFound
	}
	return c, nil
}

func (r *scheduleRepo) ListClosures(ctx context.Context) ([]schedules.Closure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedules.Closure, 0, len(r.closures))
	for _, c := range r.closures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
