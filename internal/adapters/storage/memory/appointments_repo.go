package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dental-clinic/internal/domain/appointments"
)

type appointmentRepo struct {
	mu   sync.RWMutex
	byID map[string]appointments.Appointment
}

func NewAppointmentsRepo() appointments.Repository {
	return &appointmentRepo{byID: make(map[string]appointments.Appointment)}
}

// CreateChecked verifica cupo y regla de una cita por día bajo el mismo lock.
func (r *appointmentRepo) CreateChecked(ctx context.Context, a appointments.Appointment, dayStart, dayEnd time.Time, capacity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; exists {
		return ErrDuplicate
	}
	overlapping := 0
	for _, x := range r.byID {
		if !x.Status.Holds() {
			continue
		}
		if x.PatientID == a.PatientID && !x.StartsAt.Before(dayStart) && x.StartsAt.Before(dayEnd) {
			return appointments.ErrAlreadyBooked
		}
		if x.StartsAt.Before(a.EndsAt) && a.StartsAt.Before(x.EndsAt) {
			overlapping++
		}
	}
	if overlapping >= capacity {
		return appointments.ErrSlotFull
	}
	r.byID[a.ID] = a
	return nil
}

func (r *appointmentRepo) Update(ctx context.Context, a appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; !exists {
		return ErrNotFound
	}
	r.byID[a.ID] = a
	return nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return appointments.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (r *appointmentRepo) List(ctx context.Context, f appointments.Filter) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]appointments.Appointment, 0)
	for _, a := range r.byID {
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.From != nil && a.StartsAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.StartsAt.Before(*f.To) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return limit(out, f.Limit), nil
}

func (r *appointmentRepo) Overlapping(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]appointments.Appointment, 0)
	for _, a := range r.byID {
		if a.Status.Holds() && a.StartsAt.Before(to) && from.Before(a.EndsAt) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
