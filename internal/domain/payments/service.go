package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/platform/obs"
	"dental-clinic/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("payment not found")
	ErrForbidden          = errors.New("forbidden")
	ErrBadState           = errors.New("invalid payment state")
	ErrOverRefund         = errors.New("refund exceeds paid amount")
	ErrGatewayUnavailable = errors.New("card payments are not configured")
	ErrGateway            = errors.New("payment gateway error")
)

type PatientDirectory interface {
	GetByID(ctx context.Context, id string) (patients.Patient, error)
	GetByUserID(ctx context.Context, userID string) (patients.Patient, error)
}

type Service struct {
	repo     Repository
	gateway  Gateway // nil => solo efectivo
	patients PatientDirectory
	notifier *notifications.Dispatcher
	currency string
	now      func() time.Time
}

func NewService(repo Repository, gateway Gateway, patients PatientDirectory, currency string) *Service {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "php"
	}
	return &Service{
		repo:     repo,
		gateway:  gateway,
		patients: patients,
		currency: currency,
		now:      time.Now,
	}
}

func (s *Service) WithNotifier(d *notifications.Dispatcher) *Service {
	s.notifier = d
	return s
}

type VisitCharge struct {
	VisitID       string
	AppointmentID string
	PatientID     string
	Description   string
	AmountCents   int64
	RecordedBy    string
}

// CreateForVisit crea el cobro de una visita. Si ya existe devuelve el existente.
func (s *Service) CreateForVisit(ctx context.Context, in VisitCharge) (Payment, error) {
	if strings.TrimSpace(in.VisitID) == "" || strings.TrimSpace(in.PatientID) == "" || in.AmountCents < 0 {
		return Payment{}, ErrInvalidInput
	}
	if p, err := s.repo.GetByVisit(ctx, in.VisitID); err == nil {
		return p, nil
	}

	now := s.now()
	p := Payment{
		ID:            uuid.NewString(),
		PatientID:     in.PatientID,
		VisitID:       in.VisitID,
		AppointmentID: in.AppointmentID,
		Description:   strings.TrimSpace(in.Description),
		AmountCents:   in.AmountCents,
		Currency:      s.currency,
		Status:        StatusUnpaid,
		RecordedBy:    in.RecordedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// servicio sin costo: no hay nada que cobrar
	if p.AmountCents == 0 {
		p.Status = StatusPaid
		p.PaidAt = &now
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// RecordCash: staff registra el pago en caja.
func (s *Service) RecordCash(ctx context.Context, staffID, id string) (Payment, error) {
	if strings.TrimSpace(staffID) == "" {
		return Payment{}, ErrInvalidInput
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != StatusUnpaid && p.Status != StatusFailed {
		return Payment{}, ErrBadState
	}
	now := s.now()
	p.Method = MethodCash
	p.Status = StatusPaid
	p.Provider = ""
	p.ProviderRef = ""
	p.FailureMsg = ""
	p.PaidAt = &now
	p.RecordedBy = staffID
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	s.notifyPaid(ctx, p)
	return p, nil
}

// ChargeCard cobra con el token de tarjeta generado en el frontend.
func (s *Service) ChargeCard(ctx context.Context, actor auth.Claims, id, cardToken string) (p Payment, err error) {
	ctx, span := obs.Start(ctx, "payments.ChargeCard")
	defer func() { obs.End(span, err) }()

	if s.gateway == nil {
		return Payment{}, ErrGatewayUnavailable
	}
	cardToken = strings.TrimSpace(cardToken)
	if cardToken == "" {
		return Payment{}, ErrInvalidInput
	}
	p, err = s.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if err := s.authorize(ctx, actor, p); err != nil {
		return Payment{}, err
	}
	if p.Status != StatusUnpaid && p.Status != StatusFailed {
		return Payment{}, ErrBadState
	}

	ch, err := s.gateway.Charge(ctx, ChargeRequest{
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		CardToken:   cardToken,
		Metadata:    map[string]any{"payment_id": p.ID, "patient_id": p.PatientID},
	})
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	p.Method = MethodCard
	p.Provider = s.gateway.Name()
	p.ProviderRef = ch.ID
	p.RecordedBy = actor.UserID
	s.applyCharge(&p, ch)
	if err := s.repo.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	if p.Status == StatusPaid {
		s.notifyPaid(ctx, p)
	}
	return p, nil
}

// ReconcileCharge consulta el cargo en el gateway y actualiza el pago (webhook o polling).
func (s *Service) ReconcileCharge(ctx context.Context, providerRef string) (Payment, error) {
	if s.gateway == nil {
		return Payment{}, ErrGatewayUnavailable
	}
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return Payment{}, ErrInvalidInput
	}
	p, err := s.repo.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return Payment{}, ErrNotFound
	}
	// ya resuelto
	if p.Status != StatusPending {
		return p, nil
	}

	ch, err := s.gateway.GetCharge(ctx, providerRef)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	s.applyCharge(&p, ch)
	if p.Status == StatusPending {
		return p, nil
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	if p.Status == StatusPaid {
		s.notifyPaid(ctx, p)
	}
	return p, nil
}

// HandleEvent resuelve un evento de webhook del proveedor.
func (s *Service) HandleEvent(ctx context.Context, eventID string) (Payment, error) {
	if s.gateway == nil {
		return Payment{}, ErrGatewayUnavailable
	}
	chargeID, err := s.gateway.EventCharge(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	// eventos que no son de cargos
	if chargeID == "" {
		return Payment{}, ErrNotFound
	}
	return s.ReconcileCharge(ctx, chargeID)
}

// ApplyRefund suma un reembolso ya entregado al paciente.
func (s *Service) ApplyRefund(ctx context.Context, id string, cents int64) (Payment, error) {
	if cents <= 0 {
		return Payment{}, ErrInvalidInput
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != StatusPaid {
		return Payment{}, ErrBadState
	}
	if cents > p.Refundable() {
		return Payment{}, ErrOverRefund
	}
	p.RefundedCents += cents
	if p.RefundedCents == p.AmountCents {
		p.Status = StatusRefunded
	}
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// RefundCharge devuelve por el gateway y aplica el reembolso. Solo pagos con tarjeta.
func (s *Service) RefundCharge(ctx context.Context, id string, cents int64) (string, Payment, error) {
	if s.gateway == nil {
		return "", Payment{}, ErrGatewayUnavailable
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", Payment{}, err
	}
	if p.Method != MethodCard || p.ProviderRef == "" {
		return "", Payment{}, ErrBadState
	}
	if cents <= 0 {
		return "", Payment{}, ErrInvalidInput
	}
	if cents > p.Refundable() {
		return "", Payment{}, ErrOverRefund
	}
	ref, err := s.gateway.Refund(ctx, p.ProviderRef, cents)
	if err != nil {
		return "", Payment{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	p, err = s.ApplyRefund(ctx, id, cents)
	if err != nil {
		return ref, Payment{}, err
	}
	return ref, p, nil
}

func (s *Service) Receipt(ctx context.Context, actor auth.Claims, id string) (Receipt, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if err := s.authorize(ctx, actor, p); err != nil {
		return Receipt{}, err
	}
	if p.Status != StatusPaid && p.Status != StatusRefunded {
		return Receipt{}, ErrBadState
	}

	name := ""
	if pt, err := s.patients.GetByID(ctx, p.PatientID); err == nil {
		name = pt.FullName()
	}
	return Receipt{
		Reference:     receiptReference(p),
		PaymentID:     p.ID,
		PatientID:     p.PatientID,
		PatientName:   name,
		Description:   p.Description,
		AmountCents:   p.AmountCents,
		RefundedCents: p.RefundedCents,
		Currency:      p.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		PaidAt:        p.PaidAt,
		IssuedAt:      s.now(),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Payment{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

// GetFor aplica la regla de visibilidad: el paciente solo ve sus pagos.
func (s *Service) GetFor(ctx context.Context, actor auth.Claims, id string) (Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if err := s.authorize(ctx, actor, p); err != nil {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Payment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, Filter{PatientID: patientID, Limit: 500})
}

func (s *Service) List(ctx context.Context, f Filter) ([]Payment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

// PatientForUser resuelve la ficha del paciente autenticado.
func (s *Service) PatientForUser(ctx context.Context, userID string) (patients.Patient, error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return patients.Patient{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) authorize(ctx context.Context, actor auth.Claims, p Payment) error {
	if actor.Role.IsStaffLevel() {
		return nil
	}
	pt, err := s.patients.GetByUserID(ctx, actor.UserID)
	if err != nil || pt.ID != p.PatientID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) applyCharge(p *Payment, ch Charge) {
	now := s.now()
	switch ch.Status {
	case ChargeSuccessful:
		p.Status = StatusPaid
		p.PaidAt = &now
		p.FailureMsg = ""
	case ChargeFailed:
		p.Status = StatusFailed
		p.FailureMsg = ch.FailureMessage
	default:
		p.Status = StatusPending
	}
	p.UpdatedAt = now
}

func (s *Service) notifyPaid(ctx context.Context, p Payment) {
	if s.notifier == nil {
		return
	}
	pt, err := s.patients.GetByID(ctx, p.PatientID)
	if err != nil {
		return
	}
	body := fmt.Sprintf("We received your payment of %s for %s. Receipt %s.",
		FormatAmount(p.AmountCents, p.Currency), p.Description, receiptReference(p))
	s.notifier.Notify(ctx, notifications.Message{
		Kind:      notifications.KindPaymentPaid,
		Channel:   notifications.ChannelEmail,
		Recipient: pt.Email,
		Subject:   "Payment received",
		Body:      body,
		RelatedID: p.ID,
	})
}

// FormatAmount: 150000 php -> "PHP 1500.00".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, strings.ToUpper(currency), cents/100, cents%100)
}

func receiptReference(p Payment) string {
	ref := strings.ToUpper(strings.ReplaceAll(p.ID, "-", ""))
	if len(ref) > 10 {
		ref = ref[:10]
	}
	return "RCPT-" + ref
}
