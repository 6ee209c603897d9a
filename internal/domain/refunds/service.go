package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/payments"
	"dental-clinic/internal/platform/obs"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("refund request not found")
	ErrForbidden     = errors.New("forbidden")
	ErrBadState      = errors.New("invalid refund state")
	ErrOpenRequest   = errors.New("payment already has an open refund request")
	ErrNotRefundable = errors.New("payment is not refundable")
)

// Payments es lo que refunds necesita del módulo de pagos.
type Payments interface {
	Get(ctx context.Context, id string) (payments.Payment, error)
	ApplyRefund(ctx context.Context, id string, cents int64) (payments.Payment, error)
	RefundCharge(ctx context.Context, id string, cents int64) (string, payments.Payment, error)
}

type PatientDirectory interface {
	GetByID(ctx context.Context, id string) (patients.Patient, error)
	GetByUserID(ctx context.Context, userID string) (patients.Patient, error)
}

type Service struct {
	repo     Repository
	payments Payments
	patients PatientDirectory
	notifier *notifications.Dispatcher
	now      func() time.Time
}

func NewService(repo Repository, pay Payments, dir PatientDirectory, notifier *notifications.Dispatcher) *Service {
	return &Service{
		repo:     repo,
		payments: pay,
		patients: dir,
		notifier: notifier,
		now:      time.Now,
	}
}

type RequestInput struct {
	PatientID   string
	PaymentID   string
	AmountCents int64
	Reason      string
}

// Request: el paciente pide devolver parte o todo de un pago propio.
func (s *Service) Request(ctx context.Context, in RequestInput) (Request, error) {
	reason := strings.TrimSpace(in.Reason)
	if strings.TrimSpace(in.PatientID) == "" || strings.TrimSpace(in.PaymentID) == "" || reason == "" || in.AmountCents <= 0 {
		return Request{}, ErrInvalidInput
	}

	p, err := s.payments.Get(ctx, in.PaymentID)
	if err != nil {
		return Request{}, ErrNotFound
	}
	if p.PatientID != in.PatientID {
		return Request{}, ErrForbidden
	}
	if p.Status != payments.StatusPaid {
		return Request{}, ErrNotRefundable
	}
	if in.AmountCents > p.Refundable() {
		return Request{}, fmt.Errorf("%w: amount exceeds refundable %d", ErrInvalidInput, p.Refundable())
	}

	existing, err := s.repo.ListByPayment(ctx, p.ID)
	if err != nil {
		return Request{}, err
	}
	for _, r := range existing {
		if r.Status.Open() {
			return Request{}, ErrOpenRequest
		}
	}

	now := s.now()
	r := Request{
		ID:          uuid.NewString(),
		PaymentID:   p.ID,
		PatientID:   p.PatientID,
		AmountCents: in.AmountCents,
		Reason:      reason,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Approve: tarjeta se devuelve por el gateway y queda processed; efectivo queda approved.
func (s *Service) Approve(ctx context.Context, adminID, id, note string) (r Request, err error) {
	ctx, span := obs.Start(ctx, "refunds.Approve")
	defer func() { obs.End(span, err) }()

	r, err = s.load(ctx, adminID, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusPending {
		return Request{}, ErrBadState
	}
	p, err := s.payments.Get(ctx, r.PaymentID)
	if err != nil {
		return Request{}, err
	}

	now := s.now()
	r.ReviewedBy = adminID
	r.ReviewNote = strings.TrimSpace(note)
	r.UpdatedAt = now

	if p.Method == payments.MethodCard {
		ref, _, err := s.payments.RefundCharge(ctx, p.ID, r.AmountCents)
		if err != nil {
			return Request{}, err
		}
		r.Status = StatusProcessed
		r.ProviderRef = ref
		r.ProcessedAt = &now
	} else {
		r.Status = StatusApproved
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	s.notify(ctx, r)
	return r, nil
}

// MarkProcessed: el efectivo ya se entregó al paciente.
func (s *Service) MarkProcessed(ctx context.Context, staffID, id string) (Request, error) {
	r, err := s.load(ctx, staffID, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusApproved {
		return Request{}, ErrBadState
	}
	if _, err := s.payments.ApplyRefund(ctx, r.PaymentID, r.AmountCents); err != nil {
		return Request{}, err
	}
	now := s.now()
	r.Status = StatusProcessed
	r.ProcessedAt = &now
	r.UpdatedAt = now
	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	s.notify(ctx, r)
	return r, nil
}

func (s *Service) Reject(ctx context.Context, adminID, id, note string) (Request, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return Request{}, ErrInvalidInput
	}
	r, err := s.load(ctx, adminID, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusPending {
		return Request{}, ErrBadState
	}
	r.Status = StatusRejected
	r.ReviewedBy = adminID
	r.ReviewNote = note
	r.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	s.notify(ctx, r)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Request{}, ErrInvalidInput
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, status Status) ([]Request, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, status, "")
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Request, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, "", patientID)
}

// PatientForUser resuelve la ficha del paciente autenticado.
func (s *Service) PatientForUser(ctx context.Context, userID string) (patients.Patient, error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return patients.Patient{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, actorID, id string) (Request, error) {
	if strings.TrimSpace(actorID) == "" {
		return Request{}, ErrInvalidInput
	}
	return s.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, r Request) {
	if s.notifier == nil {
		return
	}
	pt, err := s.patients.GetByID(ctx, r.PatientID)
	if err != nil {
		return
	}
	body := fmt.Sprintf("Your refund request for %.2f is now %s.", float64(r.AmountCents)/100, r.Status)
	if r.ReviewNote != "" {
		body += " Note: " + r.ReviewNote
	}
	s.notifier.Notify(ctx, notifications.EmailAndSMS(notifications.KindRefundUpdated, pt.Email, pt.Phone, "Refund update", body, r.ID)...)
}
