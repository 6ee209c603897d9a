package patients

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
	ErrForbidden    = errors.New("forbidden")
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
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
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	BirthDate *time.Time
	Sex       Sex
	Address   string
	Notes     string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Patient, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" && last == "" {
		return Patient{}, ErrInvalidInput
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Patient{}, err
	}
	sex, err := normalizeSex(in.Sex)
	if err != nil {
		return Patient{}, err
	}

	now := s.now()
	if in.BirthDate != nil && in.BirthDate.After(now) {
		return Patient{}, ErrInvalidInput
	}

	p := Patient{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(in.UserID),
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		BirthDate: in.BirthDate,
		Sex:       sex,
		Address:   strings.TrimSpace(in.Address),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

// UpdateInput: nil = no tocar.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	BirthDate *time.Time
	Sex       *Sex
	Address   *string
	Notes     *string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Patient, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Patient{}, err
	}

	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if p.FirstName == "" && p.LastName == "" {
		return Patient{}, ErrInvalidInput
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return Patient{}, err
		}
		p.Email = email
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	now := s.now()
	if in.BirthDate != nil {
		if in.BirthDate.After(now) {
			return Patient{}, ErrInvalidInput
		}
		bd := *in.BirthDate
		p.BirthDate = &bd
	}
	if in.Sex != nil {
		sex, err := normalizeSex(*in.Sex)
		if err != nil {
			return Patient{}, err
		}
		p.Sex = sex
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}
	p.UpdatedAt = now

	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (Patient, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Patient{}, ErrInvalidInput
	}
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) Search(ctx context.Context, q string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.repo.Search(ctx, strings.TrimSpace(q), limit)
}

// LinkUser asocia una cuenta recién registrada con su ficha:
// reutiliza una ficha walk-in con el mismo email o crea una nueva.
func (s *Service) LinkUser(ctx context.Context, userID, email, fullName, phone string) (Patient, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Patient{}, ErrInvalidInput
	}

	if existing, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return existing, nil
	}

	normEmail, err := normalizeEmail(email)
	if err != nil {
		return Patient{}, err
	}

	if normEmail != "" {
		if p, err := s.repo.FindUnlinkedByEmail(ctx, normEmail); err == nil {
			p.UserID = userID
			if p.Phone == "" {
				p.Phone = strings.TrimSpace(phone)
			}
			p.UpdatedAt = s.now()
			if err := s.repo.Update(ctx, p); err != nil {
				return Patient{}, err
			}
			return p, nil
		}
	}

	first, last := splitName(fullName)
	if first == "" && last == "" {
		first = normEmail
	}
	return s.Create(ctx, CreateInput{
		UserID:    userID,
		FirstName: first,
		LastName:  last,
		Email:     normEmail,
		Phone:     phone,
	})
}

// CanView: staff ve todo; un paciente sólo su propia ficha.
func CanView(p Patient, userID string, staffLevel bool) bool {
	if staffLevel {
		return true
	}
	return p.UserID != "" && p.UserID == userID
}

func normalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", ErrInvalidInput
	}
	return e, nil
}

func normalizeSex(v Sex) (Sex, error) {
	switch Sex(strings.ToLower(strings.TrimSpace(string(v)))) {
	case "", SexUnknown:
		return SexUnknown, nil
	case SexMale:
		return SexMale, nil
	case SexFemale:
		return SexFemale, nil
	}
	return "", ErrInvalidInput
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
