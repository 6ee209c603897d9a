package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-clinic/internal/domain/blocks"
	"dental-clinic/internal/domain/catalog"
	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/schedules"
	"dental-clinic/internal/platform/obs"
	"dental-clinic/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("appointment not found")
	ErrForbidden     = errors.New("forbidden")
	ErrBadState      = errors.New("invalid state")
	ErrBlocked       = errors.New("booking blocked")
	ErrOutsideWindow = errors.New("start time outside booking window")
)

// BlockGuard devuelve blocks.ErrBlocked si la cuenta o la IP están bloqueadas.
type BlockGuard interface {
	Guard(ctx context.Context, patientID, ip string) error
}

type ServiceCatalog interface {
	GetActive(ctx context.Context, id string) (catalog.Service, error)
}

type Agenda interface {
	Capacity(ctx context.Context, start, end time.Time) (int, error)
	Slots(ctx context.Context, date string, durationMinutes int, booked []schedules.Interval) ([]schedules.Slot, error)
	GetDentist(ctx context.Context, id string) (schedules.Dentist, error)
	Location() *time.Location
}

type PatientDirectory interface {
	GetByID(ctx context.Context, id string) (patients.Patient, error)
	GetByUserID(ctx context.Context, userID string) (patients.Patient, error)
}

type Deps struct {
	Blocks   BlockGuard
	Catalog  ServiceCatalog
	Agenda   Agenda
	Patients PatientDirectory
	Notifier *notifications.Dispatcher // opcional
}

type Service struct {
	repo    Repository
	deps    Deps
	maxDays int
	now     func() time.Time
}

func NewService(repo Repository, deps Deps, maxDaysAhead int) *Service {
	if maxDaysAhead <= 0 {
		maxDaysAhead = 30
	}
	return &Service{
		repo:    repo,
		deps:    deps,
		maxDays: maxDaysAhead,
		now:     time.Now,
	}
}

type BookInput struct {
	PatientID string
	ServiceID string
	StartsAt  time.Time
	Notes     string
	IP        string
	Channel   Channel
}

func (s *Service) Book(ctx context.Context, in BookInput) (a Appointment, err error) {
	ctx, span := obs.Start(ctx, "appointments.Book")
	defer func() { obs.End(span, err) }()

	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" || strings.TrimSpace(in.ServiceID) == "" || in.StartsAt.IsZero() {
		return Appointment{}, ErrInvalidInput
	}
	if in.Channel != ChannelOnline && in.Channel != ChannelStaff {
		return Appointment{}, ErrInvalidInput
	}

	// 1) bloqueos: la IP solo cuenta en reservas online
	ip := ""
	if in.Channel == ChannelOnline {
		ip = in.IP
	}
	if err := s.deps.Blocks.Guard(ctx, patientID, ip); err != nil {
		if errors.Is(err, blocks.ErrBlocked) {
			return Appointment{}, ErrBlocked
		}
		return Appointment{}, err
	}

	if _, err := s.deps.Patients.GetByID(ctx, patientID); err != nil {
		return Appointment{}, fmt.Errorf("%w: unknown patient", ErrInvalidInput)
	}

	// 2) servicio activo
	svc, err := s.deps.Catalog.GetActive(ctx, in.ServiceID)
	if err != nil {
		return Appointment{}, fmt.Errorf("%w: service unavailable", ErrInvalidInput)
	}

	// 3) ventana de reserva
	now := s.now()
	start := in.StartsAt
	end := start.Add(svc.Duration())
	if !start.After(now) || start.After(now.AddDate(0, 0, s.maxDays)) {
		return Appointment{}, ErrOutsideWindow
	}

	// 5) capacidad de la franja según turnos de dentistas
	capacity, err := s.deps.Agenda.Capacity(ctx, start, end)
	if err != nil {
		return Appointment{}, err
	}
	if capacity <= 0 {
		return Appointment{}, ErrSlotFull
	}

	a = Appointment{
		ID:        uuid.NewString(),
		Reference: newReference(),
		PatientID: patientID,
		ServiceID: svc.ID,
		StartsAt:  start,
		EndsAt:    end,
		Status:    StatusPending,
		Notes:     strings.TrimSpace(in.Notes),
		BookedIP:  strings.TrimSpace(in.IP),
		Channel:   in.Channel,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 4) + 5) un turno por día y cupo, atómico en el repo
	dayStart, dayEnd := s.dayBounds(start)
	if err := s.repo.CreateChecked(ctx, a, dayStart, dayEnd, capacity); err != nil {
		return Appointment{}, err
	}

	s.notify(ctx, a, notifications.KindAppointmentBooked, "Appointment request received",
		fmt.Sprintf("We received your request %s for %s on %s. We will confirm it shortly.", a.Reference, svc.Name, s.fmtTime(a.StartsAt)))
	return a, nil
}

func (s *Service) Approve(ctx context.Context, staffID, id, dentistID string) (Appointment, error) {
	a, err := s.load(ctx, staffID, id)
	if err != nil {
		return Appointment{}, err
	}
	if dentistID = strings.TrimSpace(dentistID); dentistID != "" {
		d, err := s.deps.Agenda.GetDentist(ctx, dentistID)
		if err != nil || d.Status != schedules.DentistActive {
			return Appointment{}, fmt.Errorf("%w: dentist unavailable", ErrInvalidInput)
		}
		a.DentistID = d.ID
	}
	if err := s.move(ctx, &a, StatusApproved, staffID, ""); err != nil {
		return Appointment{}, err
	}
	s.notify(ctx, a, notifications.KindAppointmentApproved, "Appointment confirmed",
		fmt.Sprintf("Your appointment %s on %s is confirmed.", a.Reference, s.fmtTime(a.StartsAt)))
	return a, nil
}

func (s *Service) Reject(ctx context.Context, staffID, id, reason string) (Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Appointment{}, ErrInvalidInput
	}
	a, err := s.load(ctx, staffID, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.move(ctx, &a, StatusRejected, staffID, reason); err != nil {
		return Appointment{}, err
	}
	s.notify(ctx, a, notifications.KindAppointmentRejected, "Appointment request declined",
		fmt.Sprintf("Your request %s for %s was declined: %s", a.Reference, s.fmtTime(a.StartsAt), reason))
	return a, nil
}

// Cancel: el paciente solo cancela sus citas y antes de la hora; staff cancela cualquiera.
func (s *Service) Cancel(ctx context.Context, actor auth.Claims, id, reason string) (Appointment, error) {
	a, err := s.load(ctx, actor.UserID, id)
	if err != nil {
		return Appointment{}, err
	}

	if !actor.Role.IsStaffLevel() {
		p, err := s.deps.Patients.GetByUserID(ctx, actor.UserID)
		if err != nil || p.ID != a.PatientID {
			return Appointment{}, ErrForbidden
		}
		if !s.now().Before(a.StartsAt) {
			return Appointment{}, ErrBadState
		}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by " + string(actor.Role)
	}
	if err := s.move(ctx, &a, StatusCancelled, actor.UserID, reason); err != nil {
		return Appointment{}, err
	}
	s.notify(ctx, a, notifications.KindAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("Appointment %s on %s was cancelled.", a.Reference, s.fmtTime(a.StartsAt)))
	return a, nil
}

// MarkNoShow: solo citas aprobadas cuya hora ya pasó.
func (s *Service) MarkNoShow(ctx context.Context, staffID, id string) (Appointment, error) {
	a, err := s.load(ctx, staffID, id)
	if err != nil {
		return Appointment{}, err
	}
	if s.now().Before(a.StartsAt) {
		return Appointment{}, ErrBadState
	}
	if err := s.move(ctx, &a, StatusNoShow, staffID, ""); err != nil {
		return Appointment{}, err
	}
	s.notify(ctx, a, notifications.KindAppointmentNoShow, "Missed appointment",
		fmt.Sprintf("We missed you for appointment %s on %s. Book again any time.", a.Reference, s.fmtTime(a.StartsAt)))
	return a, nil
}

// MarkCompleted lo usa visits al cerrar la atención.
func (s *Service) MarkCompleted(ctx context.Context, id, by string) (Appointment, error) {
	return s.Settle(ctx, id, StatusCompleted, by)
}

// Settle cierra una cita aprobada desde una visita (completed o no_show), sin regla horaria.
func (s *Service) Settle(ctx context.Context, id string, to Status, by string) (Appointment, error) {
	if to != StatusCompleted && to != StatusNoShow {
		return Appointment{}, ErrInvalidInput
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.move(ctx, &a, to, by, ""); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// ExpireStale cancela citas pendientes cuya hora ya pasó sin decisión.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.List(ctx, Filter{Status: StatusPending, To: &now})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range stale {
		if err := s.move(ctx, &a, StatusCancelled, "system", "expired"); err != nil {
			continue
		}
		n++
		s.notify(ctx, a, notifications.KindAppointmentCancelled, "Appointment request expired",
			fmt.Sprintf("Your request %s for %s expired before it was confirmed.", a.Reference, s.fmtTime(a.StartsAt)))
	}
	return n, nil
}

// DueForReminder: aprobadas que empiezan en [from, to) y aún sin recordatorio.
func (s *Service) DueForReminder(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	list, err := s.repo.List(ctx, Filter{Status: StatusApproved, From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if a.ReminderSentAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) MarkReminded(ctx context.Context, id string, at time.Time) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	a.ReminderSentAt = &at
	a.UpdatedAt = s.now()
	return s.repo.Update(ctx, a)
}

// SendReminder encola email + SMS del recordatorio y marca la cita.
func (s *Service) SendReminder(ctx context.Context, a Appointment) error {
	s.notify(ctx, a, notifications.KindAppointmentReminder, "Appointment reminder",
		fmt.Sprintf("Reminder: your appointment %s is on %s.", a.Reference, s.fmtTime(a.StartsAt)))
	return s.MarkReminded(ctx, a.ID, s.now())
}

func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrInvalidInput
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
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
	p, err := s.deps.Patients.GetByUserID(ctx, userID)
	if err != nil {
		return patients.Patient{}, ErrForbidden
	}
	return p, nil
}

// Availability arma los slots de un día para un servicio.
func (s *Service) Availability(ctx context.Context, date, serviceID string) ([]schedules.Slot, error) {
	svc, err := s.deps.Catalog.GetActive(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: service unavailable", ErrInvalidInput)
	}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), s.deps.Agenda.Location())
	if err != nil {
		return nil, ErrInvalidInput
	}
	booked, err := s.repo.Overlapping(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	intervals := make([]schedules.Interval, 0, len(booked))
	for _, a := range booked {
		intervals = append(intervals, schedules.Interval{Start: a.StartsAt, End: a.EndsAt})
	}

	slots, err := s.deps.Agenda.Slots(ctx, date, svc.DurationMinutes, intervals)
	if err != nil {
		return nil, err
	}
	// no ofrecemos franjas pasadas ni fuera de ventana
	now := s.now()
	limit := now.AddDate(0, 0, s.maxDays)
	out := make([]schedules.Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.Start.After(now) && !sl.Start.After(limit) {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, actorID, id string) (Appointment, error) {
	if strings.TrimSpace(actorID) == "" {
		return Appointment{}, ErrInvalidInput
	}
	return s.Get(ctx, id)
}

func (s *Service) move(ctx context.Context, a *Appointment, to Status, by, reason string) error {
	if !CanTransition(a.Status, to) {
		return ErrBadState
	}
	now := s.now()
	a.Status = to
	a.DecidedBy = by
	a.DecidedAt = &now
	if reason != "" {
		a.CancelReason = reason
	}
	a.UpdatedAt = now
	return s.repo.Update(ctx, *a)
}

func (s *Service) notify(ctx context.Context, a Appointment, kind notifications.Kind, subject, body string) {
	if s.deps.Notifier == nil {
		return
	}
	p, err := s.deps.Patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return
	}
	s.deps.Notifier.Notify(ctx, notifications.EmailAndSMS(kind, p.Email, p.Phone, subject, body, a.ID)...)
}

func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	lt := t.In(s.deps.Agenda.Location())
	y, m, d := lt.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, lt.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) fmtTime(t time.Time) string {
	return t.In(s.deps.Agenda.Location()).Format("Mon Jan 2, 2006 3:04 PM")
}

func newReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}
