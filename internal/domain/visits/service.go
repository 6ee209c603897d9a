package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/catalog"
	"dental-clinic/internal/domain/inventory"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/payments"
	"dental-clinic/internal/platform/obs"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("visit not found")
	ErrForbidden         = errors.New("forbidden")
	ErrBadState          = errors.New("invalid visit state")
	ErrConflict          = errors.New("appointment already has an open visit")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockChanged      = errors.New("stock changed, retry")
)

type Appointments interface {
	Get(ctx context.Context, id string) (appointments.Appointment, error)
	Settle(ctx context.Context, id string, to appointments.Status, by string) (appointments.Appointment, error)
}

type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Service, error)
	GetActive(ctx context.Context, id string) (catalog.Service, error)
}

type Inventory interface {
	Consume(ctx context.Context, lines []inventory.Line, reference, userID string) ([]inventory.Movement, error)
	Adjust(ctx context.Context, batchID string, delta int, reason, userID string) (inventory.Batch, error)
}

type Payments interface {
	CreateForVisit(ctx context.Context, in payments.VisitCharge) (payments.Payment, error)
}

type PatientDirectory interface {
	GetByID(ctx context.Context, id string) (patients.Patient, error)
	GetByUserID(ctx context.Context, userID string) (patients.Patient, error)
}

type Deps struct {
	Appointments Appointments
	Catalog      Catalog
	Inventory    Inventory
	Payments     Payments
	Patients     PatientDirectory
}

type Service struct {
	repo Repository
	deps Deps
	now  func() time.Time
}

func NewService(repo Repository, deps Deps) *Service {
	return &Service{repo: repo, deps: deps, now: time.Now}
}

type StartInput struct {
	StaffID       string
	AppointmentID string
	// walk-in
	PatientID string
	ServiceID string
	Notes     string
}

// Start abre la visita desde una cita aprobada o como walk-in.
func (s *Service) Start(ctx context.Context, in StartInput) (Visit, error) {
	if strings.TrimSpace(in.StaffID) == "" {
		return Visit{}, ErrInvalidInput
	}

	now := s.now()
	v := Visit{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartedAt: now,
		Notes:     strings.TrimSpace(in.Notes),
		StartedBy: in.StaffID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if id := strings.TrimSpace(in.AppointmentID); id != "" {
		a, err := s.deps.Appointments.Get(ctx, id)
		if err != nil {
			return Visit{}, fmt.Errorf("%w: unknown appointment", ErrInvalidInput)
		}
		if a.Status != appointments.StatusApproved {
			return Visit{}, ErrBadState
		}
		if open, err := s.repo.GetByAppointment(ctx, a.ID); err == nil && open.Status == StatusPending {
			return Visit{}, ErrConflict
		}
		v.AppointmentID = a.ID
		v.PatientID = a.PatientID
		v.ServiceID = a.ServiceID
	} else {
		if strings.TrimSpace(in.PatientID) == "" || strings.TrimSpace(in.ServiceID) == "" {
			return Visit{}, ErrInvalidInput
		}
		p, err := s.deps.Patients.GetByID(ctx, in.PatientID)
		if err != nil {
			return Visit{}, fmt.Errorf("%w: unknown patient", ErrInvalidInput)
		}
		svc, err := s.deps.Catalog.GetActive(ctx, in.ServiceID)
		if err != nil {
			return Visit{}, fmt.Errorf("%w: service unavailable", ErrInvalidInput)
		}
		v.PatientID = p.ID
		v.ServiceID = svc.ID
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return Visit{}, err
	}
	return v, nil
}

type CompleteInput struct {
	StaffID string
	VisitID string
	Notes   string
	Teeth   []string
	Items   []ConsumedItem
}

// Complete cierra la visita: descuenta insumos (FEFO), genera el cobro, cierra la cita
// y persiste la visita. Si un paso posterior al descuento falla, el stock se devuelve
// y la visita sigue pending; reintentar acepta la cita ya completada por esta visita.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (v Visit, err error) {
	ctx, span := obs.Start(ctx, "visits.Complete")
	defer func() { obs.End(span, err) }()

	v, err = s.load(ctx, in.StaffID, in.VisitID)
	if err != nil {
		return Visit{}, err
	}
	if !CanTransition(v.Status, StatusCompleted) {
		return Visit{}, ErrBadState
	}

	lines := make([]inventory.Line, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.ItemID) == "" || it.Qty <= 0 {
			return Visit{}, ErrInvalidInput
		}
		lines = append(lines, inventory.Line{ItemID: it.ItemID, Qty: it.Qty})
	}

	settle := false
	if v.AppointmentID != "" {
		a, err := s.deps.Appointments.Get(ctx, v.AppointmentID)
		if err != nil {
			return Visit{}, err
		}
		switch {
		case a.Status == appointments.StatusCompleted:
			// intento anterior a medias: la cita solo pudo cerrarla esta visita
		case appointments.CanTransition(a.Status, appointments.StatusCompleted):
			settle = true
		default:
			return Visit{}, ErrBadState
		}
	}
	svc, err := s.deps.Catalog.Get(ctx, v.ServiceID)
	if err != nil {
		return Visit{}, err
	}

	var consumed []inventory.Movement
	if len(lines) > 0 {
		consumed, err = s.deps.Inventory.Consume(ctx, lines, "visit:"+v.ID, in.StaffID)
		if err != nil {
			switch {
			case errors.Is(err, inventory.ErrInsufficientStock):
				return Visit{}, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
			case errors.Is(err, inventory.ErrStockChanged):
				return Visit{}, fmt.Errorf("%w: %v", ErrStockChanged, err)
			case errors.Is(err, inventory.ErrNotFound), errors.Is(err, inventory.ErrInvalidInput):
				return Visit{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			return Visit{}, err
		}
	}

	pay, err := s.deps.Payments.CreateForVisit(ctx, payments.VisitCharge{
		VisitID:       v.ID,
		AppointmentID: v.AppointmentID,
		PatientID:     v.PatientID,
		Description:   svc.Name,
		AmountCents:   svc.PriceCents,
		RecordedBy:    in.StaffID,
	})
	if err != nil {
		return Visit{}, s.restock(ctx, v.ID, in.StaffID, consumed, err)
	}

	if settle {
		if _, err := s.deps.Appointments.Settle(ctx, v.AppointmentID, appointments.StatusCompleted, in.StaffID); err != nil {
			if errors.Is(err, appointments.ErrBadState) {
				err = ErrBadState
			}
			return Visit{}, s.restock(ctx, v.ID, in.StaffID, consumed, err)
		}
	}

	now := s.now()
	v.Status = StatusCompleted
	v.EndedAt = &now
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		v.Notes = notes
	}
	v.TeethTreated = cleanTeeth(in.Teeth)
	v.Items = in.Items
	v.CompletedBy = in.StaffID
	v.UpdatedAt = now
	v.PaymentID = pay.ID

	if err := s.repo.Update(ctx, v); err != nil {
		return Visit{}, s.restock(ctx, v.ID, in.StaffID, consumed, err)
	}
	return v, nil
}

// restock devuelve lo consumido por un Complete fallido, lote por lote.
func (s *Service) restock(ctx context.Context, visitID, userID string, consumed []inventory.Movement, cause error) error {
	errs := []error{cause}
	for _, mv := range consumed {
		if mv.Qty >= 0 {
			continue
		}
		if _, err := s.deps.Inventory.Adjust(ctx, mv.BatchID, -mv.Qty, "visit:"+visitID+" rollback", userID); err != nil {
			errs = append(errs, fmt.Errorf("restock batch %s: %w", mv.BatchID, err))
		}
	}
	return errors.Join(errs...)
}

// MarkNoShow: el paciente no llegó. La cita vinculada también queda no_show.
func (s *Service) MarkNoShow(ctx context.Context, staffID, id string) (Visit, error) {
	v, err := s.load(ctx, staffID, id)
	if err != nil {
		return Visit{}, err
	}
	if !CanTransition(v.Status, StatusNoShow) {
		return Visit{}, ErrBadState
	}
	if v.AppointmentID != "" {
		if _, err := s.deps.Appointments.Settle(ctx, v.AppointmentID, appointments.StatusNoShow, staffID); err != nil {
			if errors.Is(err, appointments.ErrBadState) {
				return Visit{}, ErrBadState
			}
			return Visit{}, err
		}
	}
	now := s.now()
	v.Status = StatusNoShow
	v.EndedAt = &now
	v.CompletedBy = staffID
	v.UpdatedAt = now
	if err := s.repo.Update(ctx, v); err != nil {
		return Visit{}, err
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, id string) (Visit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Visit{}, ErrInvalidInput
	}
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Visit{}, ErrNotFound
	}
	return v, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Visit, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, Filter{PatientID: patientID, Limit: 500})
}

func (s *Service) ListOpen(ctx context.Context) ([]Visit, error) {
	return s.repo.List(ctx, Filter{Status: StatusPending, Limit: 500})
}

func (s *Service) List(ctx context.Context, f Filter) ([]Visit, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

// OwnsPatient dice si el usuario autenticado es el paciente indicado.
func (s *Service) OwnsPatient(ctx context.Context, userID, patientID string) bool {
	p, err := s.deps.Patients.GetByUserID(ctx, userID)
	return err == nil && p.ID == patientID
}

func (s *Service) load(ctx context.Context, staffID, id string) (Visit, error) {
	if strings.TrimSpace(staffID) == "" {
		return Visit{}, ErrInvalidInput
	}
	return s.Get(ctx, id)
}

// cleanTeeth normaliza la notación FDI ("11", "46"...) y quita duplicados.
func cleanTeeth(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
