package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dental-clinic/internal/domain/patients"
)

type patientRepo struct {
	mu   sync.RWMutex
	byID map[string]patients.Patient
}

func NewPatientsRepo() patients.Repository {
	return &patientRepo{byID: make(map[string]patients.Patient)}
}

func (r *patientRepo) Create(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return ErrDuplicate
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) Update(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Patient{}, ErrNotFound
	}
	return p, nil
}

func (r *patientRepo) GetByUserID(ctx context.Context, userID string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if userID == "" {
		return patients.Patient{}, ErrNotFound
	}
	for _, p := range r.byID {
		if p.UserID == userID {
			return p, nil
		}
	}
	return patients.Patient{}, ErrNotFound
}

func (r *patientRepo) FindUnlinkedByEmail(ctx context.Context, email string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if p.UserID == "" && p.Email != "" && strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return patients.Patient{}, ErrNotFound
}

func (r *patientRepo) Search(ctx context.Context, q string, n int) ([]patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]patients.Patient, 0)
	for _, p := range r.byID {
		if q == "" || matchesPatient(p, q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return limit(out, n), nil
}

func matchesPatient(p patients.Patient, q string) bool {
	for _, f := range []string{p.FirstName, p.LastName, p.Email, p.Phone} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(p.FullName()), q)
}
