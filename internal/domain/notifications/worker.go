package notifications

import (
	"context"
	"fmt"
	"time"

	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/obs"
)

// Worker consume la cola y entrega con reintentos de backoff fijo.
type Worker struct {
	repo        Repository
	queue       Queue
	senders     map[Channel]Sender
	maxAttempts int
	backoff     time.Duration
	log         logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type WorkerOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	Logger      logger.Logger
}

func NewWorker(repo Repository, queue Queue, senders map[Channel]Sender, opts WorkerOptions) *Worker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Worker{
		repo:        repo,
		queue:       queue,
		senders:     senders,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		log:         opts.Logger.With(map[string]any{"component": "notify-worker"}),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Run bloquea hasta que ctx se cancele.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", map[string]any{"max_attempts": w.maxAttempts, "backoff": w.backoff.String()})
	err := w.queue.Consume(ctx, w.Handle)
	w.log.Info("worker stopped", nil)
	return err
}

// Handle entrega un mensaje. Devuelve error solo si no pudo dejar el log consistente;
// un envío fallido tras agotar intentos no es error para la cola (ack).
func (w *Worker) Handle(ctx context.Context, m Message) error {
	ctx, span := obs.Start(ctx, "notifications.Deliver")
	defer func() { obs.End(span, nil) }()

	l, err := w.repo.GetByID(ctx, m.ID)
	if err != nil {
		// mensaje sin log (p.ej. publicado por otra instancia antes de persistir)
		now := w.now()
		l = Log{ID: m.ID, Kind: m.Kind, Channel: m.Channel, Recipient: m.Recipient, Subject: m.Subject,
			RelatedID: m.RelatedID, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}
		if err := w.repo.Create(ctx, l); err != nil {
			return err
		}
	}
	if l.Status == StatusSent {
		return nil
	}

	log := w.log.With(map[string]any{"message_id": m.ID, "channel": string(m.Channel), "kind": string(m.Kind)})

	sender, ok := w.senders[m.Channel]
	if !ok {
		l.Status = StatusFailed
		l.LastError = fmt.Sprintf("no sender for channel %q", m.Channel)
		l.UpdatedAt = w.now()
		log.Error("notification failed", map[string]any{"error": l.LastError})
		return w.repo.Update(ctx, l)
	}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		sendErr := sender.Send(ctx, m)
		l.Attempts++
		l.UpdatedAt = w.now()

		if sendErr == nil {
			at := w.now()
			l.Status = StatusSent
			l.LastError = ""
			l.SentAt = &at
			log.Info("notification sent", map[string]any{"attempt": attempt})
			return w.repo.Update(ctx, l)
		}

		l.LastError = sendErr.Error()
		if attempt == w.maxAttempts {
			l.Status = StatusFailed
			log.Error("notification failed", map[string]any{"attempt": attempt, "error": sendErr})
			return w.repo.Update(ctx, l)
		}

		log.Warn("notification attempt failed", map[string]any{"attempt": attempt, "error": sendErr})
		if err := w.repo.Update(ctx, l); err != nil {
			return err
		}
		if err := w.sleep(ctx, w.backoff); err != nil {
			// shutdown: queda en queued para que otra corrida lo tome
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
