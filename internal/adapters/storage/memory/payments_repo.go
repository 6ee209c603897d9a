package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/payments"
)

type paymentRepo struct {
	mu   sync.RWMutex
	byID map[string]payments.Payment
}

func NewPaymentsRepo() payments.Repository {
	return &paymentRepo{byID: make(map[string]payments.Payment)}
}

func (r *paymentRepo) Create(ctx context.Context, p payments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return ErrDuplicate
	}
	// un cobro por visita
	if p.VisitID != "" {
		for _, x := range r.byID {
			if x.VisitID == p.VisitID {
				return ErrDuplicate
			}
		}
	}
	r.byID[p.ID] = p
	return nil
}

func (r *paymentRepo) Update(ctx context.Context, p payments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return payments.Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *paymentRepo) GetByVisit(ctx context.Context, visitID string) (payments.Payment, error) {
	return r.find(func(p payments.Payment) bool { return visitID != "" && p.VisitID == visitID })
}

func (r *paymentRepo) GetByProviderRef(ctx context.Context, ref string) (payments.Payment, error) {
	return r.find(func(p payments.Payment) bool { return ref != "" && p.ProviderRef == ref })
}

func (r *paymentRepo) find(match func(payments.Payment) bool) (payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if match(p) {
			return p, nil
		}
	}
	return payments.Payment{}, ErrNotFound
}

func (r *paymentRepo) List(ctx context.Context, f payments.Filter) ([]payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]payments.Payment, 0)
	for _, p := range r.byID {
		if f.PatientID != "" && p.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.From != nil && p.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !p.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}
