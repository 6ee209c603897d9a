package blocks

import (
	"context"
	"errors"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("block not found")
	ErrBlocked      = errors.New("blocked")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Type      Type
	PatientID string
	IP        string
	Reason    string
	CreatedBy string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Block, error) {
	patientID := strings.TrimSpace(in.PatientID)
	rawIP := strings.TrimSpace(in.IP)
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		return Block{}, ErrInvalidInput
	}

	needPatient := in.Type == TypeAccount || in.Type == TypeBoth
	needIP := in.Type == TypeIP || in.Type == TypeBoth

	switch in.Type {
	case TypeAccount, TypeIP, TypeBoth:
	default:
		return Block{}, ErrInvalidInput
	}
	if needPatient && patientID == "" {
		return Block{}, ErrInvalidInput
	}

	var rule string
	if needIP {
		p, err := ParseRule(rawIP)
		if err != nil {
			return Block{}, ErrInvalidInput
		}
		rule = p.String()
	}
	if !needPatient {
		patientID = ""
	}

	b := Block{
		ID:        uuid.NewString(),
		Type:      in.Type,
		PatientID: patientID,
		IPRule:    rule,
		Reason:    strings.TrimSpace(in.Reason),
		Status:    StatusActive,
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return Block{}, err
	}
	return b, nil
}

func (s *Service) Lift(ctx context.Context, id, by string) (Block, error) {
	id = strings.TrimSpace(id)
	by = strings.TrimSpace(by)
	if id == "" || by == "" {
		return Block{}, ErrInvalidInput
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Block{}, ErrNotFound
	}

	// Idempotente
	if b.Status == StatusLifted {
		return b, nil
	}

	now := s.now()
	b.Status = StatusLifted
	b.LiftedBy = by
	b.LiftedAt = &now

	if err := s.repo.Update(ctx, b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// Check devuelve el primer bloqueo activo (más antiguo) que aplica.
// ip puede venir vacío o con puerto; si no parsea se ignora.
func (s *Service) Check(ctx context.Context, patientID, ip string) (Block, bool, error) {
	active, err := s.repo.List(ctx, StatusActive)
	if err != nil {
		return Block{}, false, err
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })

	addr := parseClientIP(ip)
	patientID = strings.TrimSpace(patientID)

	for _, b := range active {
		if b.Matches(patientID, addr) {
			return b, true, nil
		}
	}
	return Block{}, false, nil
}

// Guard es la variante que usa agenda: error ErrBlocked si hay match.
func (s *Service) Guard(ctx context.Context, patientID, ip string) error {
	_, hit, err := s.Check(ctx, patientID, ip)
	if err != nil {
		return err
	}
	if hit {
		return ErrBlocked
	}
	return nil
}

func (s *Service) List(ctx context.Context, status Status) ([]Block, error) {
	switch status {
	case "", StatusActive, StatusLifted:
	default:
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, status)
}

func parseClientIP(raw string) netip.Addr {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap()
	}
	a, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}
