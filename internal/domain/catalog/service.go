package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("service not found")
	ErrInactive     = errors.New("service is not active")
)

const (
	minDuration = 15
	maxDuration = 480
)

type Svc struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Svc {
	return &Svc{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name            string
	Description     string
	PriceCents      int64
	DurationMinutes int
}

func (s *Svc) Create(ctx context.Context, in CreateInput) (Service, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.PriceCents < 0 {
		return Service{}, ErrInvalidInput
	}
	if in.DurationMinutes < minDuration || in.DurationMinutes > maxDuration {
		return Service{}, ErrInvalidInput
	}

	now := s.now()
	svc := Service{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		PriceCents:      in.PriceCents,
		DurationMinutes: in.DurationMinutes,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return Service{}, err
	}
	return svc, nil
}

// UpdateInput usa punteros: nil = no tocar.
type UpdateInput struct {
	Name            *string
	Description     *string
	PriceCents      *int64
	DurationMinutes *int
	IsActive        *bool
}

func (s *Svc) Update(ctx context.Context, id string, in UpdateInput) (Service, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Service{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Service{}, ErrInvalidInput
		}
		cur.Name = name
	}
	if in.Description != nil {
		cur.Description = strings.TrimSpace(*in.Description)
	}
	if in.PriceCents != nil {
		if *in.PriceCents < 0 {
			return Service{}, ErrInvalidInput
		}
		cur.PriceCents = *in.PriceCents
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes < minDuration || *in.DurationMinutes > maxDuration {
			return Service{}, ErrInvalidInput
		}
		cur.DurationMinutes = *in.DurationMinutes
	}
	if in.IsActive != nil {
		cur.IsActive = *in.IsActive
	}
	cur.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, cur); err != nil {
		return Service{}, err
	}
	return cur, nil
}

func (s *Svc) Get(ctx context.Context, id string) (Service, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Service{}, ErrInvalidInput
	}
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Service{}, ErrNotFound
	}
	return svc, nil
}

// GetActive es lo que usan agenda y visitas: el servicio debe existir y estar activo.
func (s *Svc) GetActive(ctx context.Context, id string) (Service, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return Service{}, err
	}
	if !svc.IsActive {
		return Service{}, ErrInactive
	}
	return svc, nil
}

func (s *Svc) List(ctx context.Context, onlyActive bool) ([]Service, error) {
	return s.repo.List(ctx, onlyActive)
}
