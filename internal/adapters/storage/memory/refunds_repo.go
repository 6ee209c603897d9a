package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic/internal/domain/refunds"
)

type refundRepo struct {
	mu   sync.RWMutex
	byID map[string]refunds.Request
}

func NewRefundsRepo() refunds.Repository {
	return &refundRepo{byID: make(map[string]refunds.Request)}
}

func (r *refundRepo) Create(ctx context.Context, rq refunds.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rq.ID]; exists {
		return ErrDuplicate
	}
	// una sola solicitud abierta por pago
	for _, x := range r.byID {
		if x.PaymentID == rq.PaymentID && x.Status.Open() {
			return ErrDuplicate
		}
	}
	r.byID[rq.ID] = rq
	return nil
}

func (r *refundRepo) Update(ctx context.Context, rq refunds.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rq.ID]; !exists {
		return ErrNotFound
	}
	r.byID[rq.ID] = rq
	return nil
}

func (r *refundRepo) GetByID(ctx context.Context, id string) (refunds.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rq, ok := r.byID[id]
	if !ok {
		return refunds.Request{}, ErrNotFound
	}
	return rq, nil
}

func (r *refundRepo) ListByPayment(ctx context.Context, paymentID string) ([]refunds.Request, error) {
	return r.filter(func(rq refunds.Request) bool { return rq.PaymentID == paymentID }), nil
}

func (r *refundRepo) List(ctx context.Context, status refunds.Status, patientID string) ([]refunds.Request, error) {
	return r.filter(func(rq refunds.Request) bool {
		return (status == "" || rq.Status == status) && (patientID == "" || rq.PatientID == patientID)
	}), nil
}

func (r *refundRepo) filter(keep func(refunds.Request) bool) []refunds.Request {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]refunds.Request, 0)
	for _, rq := range r.byID {
		if keep(rq) {
			out = append(out, rq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
