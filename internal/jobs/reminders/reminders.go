// Package reminders corre las tareas periódicas de la agenda:
// recordatorios de citas aprobadas y expiración de solicitudes vencidas.
package reminders

import (
	"context"
	"fmt"
	"time"

	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/platform/logger"

	"github.com/go-co-op/gocron"
)

type Appointments interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
	SendReminder(ctx context.Context, a appointments.Appointment) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type Options struct {
	Every    time.Duration // default 15m
	LeadTime time.Duration // default 24h
	Location *time.Location
	Logger   logger.Logger
}

type Runner struct {
	appts Appointments
	opts  Options
	now   func() time.Time
}

func New(appts Appointments, opts Options) *Runner {
	if opts.Every <= 0 {
		opts.Every = 15 * time.Minute
	}
	if opts.LeadTime <= 0 {
		opts.LeadTime = 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Runner{appts: appts, opts: opts, now: time.Now}
}

// SendDue encola el recordatorio de cada cita aprobada que empieza dentro de LeadTime.
func (r *Runner) SendDue(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.appts.DueForReminder(ctx, now, now.Add(r.opts.LeadTime))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, a := range due {
		if err := r.appts.SendReminder(ctx, a); err != nil {
			r.opts.Logger.Warn("reminder failed", map[string]any{
				"appointment_id": a.ID,
				"error":          err,
			})
			continue
		}
		sent++
		r.opts.Logger.Debug("reminder queued", map[string]any{
			"appointment_id": a.ID,
			"starts_at":      a.StartsAt,
		})
	}
	return sent, nil
}

// Tick es una pasada completa del job.
func (r *Runner) Tick(ctx context.Context) {
	sent, err := r.SendDue(ctx)
	if err != nil {
		r.opts.Logger.Error("reminders: send due", map[string]any{"error": err})
	}
	expired, err := r.appts.ExpireStale(ctx, r.now())
	if err != nil {
		r.opts.Logger.Error("reminders: expire stale", map[string]any{"error": err})
	}
	if sent > 0 || expired > 0 {
		r.opts.Logger.Info("reminders tick", map[string]any{
			"reminders_sent":   sent,
			"expired_requests": expired,
		})
	}
}

// Start programa Tick con gocron y devuelve la función para detenerlo.
func (r *Runner) Start(ctx context.Context) (func(), error) {
	s := gocron.NewScheduler(r.opts.Location)
	s.SingletonModeAll()

	minutes := int(r.opts.Every / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if _, err := s.Every(minutes).Minutes().Do(func() { r.Tick(ctx) }); err != nil {
		return nil, fmt.Errorf("reminders: schedule: %w", err)
	}
	s.StartAsync()
	r.opts.Logger.Info("reminder scheduler started", map[string]any{
		"every_min":  minutes,
		"lead_hours": r.opts.LeadTime.Hours(),
	})
	return s.Stop, nil
}
