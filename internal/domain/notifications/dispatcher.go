package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/obs"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("notification not found")
)

// Dispatcher deja el log en queued y publica en la cola.
type Dispatcher struct {
	repo  Repository
	queue Queue
	log   logger.Logger
	now   func() time.Time
}

func NewDispatcher(repo Repository, queue Queue, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		repo:  repo,
		queue: queue,
		log:   log,
		now:   time.Now,
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, m Message) (Log, error) {
	ctx, span := obs.Start(ctx, "notifications.Enqueue")
	var err error
	defer func() { obs.End(span, err) }()

	m.Recipient = strings.TrimSpace(m.Recipient)
	if !m.Channel.Valid() || m.Recipient == "" || strings.TrimSpace(m.Body) == "" {
		err = ErrInvalidInput
		return Log{}, err
	}

	now := d.now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now

	l := Log{
		ID:        m.ID,
		Kind:      m.Kind,
		Channel:   m.Channel,
		Recipient: m.Recipient,
		Subject:   m.Subject,
		RelatedID: m.RelatedID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = d.repo.Create(ctx, l); err != nil {
		return Log{}, err
	}

	if err = d.queue.Publish(ctx, m); err != nil {
		l.Status = StatusFailed
		l.LastError = "publish: " + err.Error()
		l.UpdatedAt = d.now()
		_ = d.repo.Update(ctx, l)
		return l, err
	}
	return l, nil
}

// Notify es best-effort: los flujos de negocio no fallan por una notificación.
func (d *Dispatcher) Notify(ctx context.Context, msgs ...Message) {
	if d == nil {
		return
	}
	for _, m := range msgs {
		if strings.TrimSpace(m.Recipient) == "" {
			continue
		}
		if _, err := d.Enqueue(ctx, m); err != nil {
			logger.FromContext(ctx, d.log).Warn("notification not queued", map[string]any{
				"kind":    string(m.Kind),
				"channel": string(m.Channel),
				"error":   err,
			})
		}
	}
}

func (d *Dispatcher) ListLogs(ctx context.Context, f LogFilter) ([]Log, error) {
	if f.Status != "" && f.Status != StatusQueued && f.Status != StatusSent && f.Status != StatusFailed {
		return nil, ErrInvalidInput
	}
	if f.Channel != "" && !f.Channel.Valid() {
		return nil, ErrInvalidInput
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return d.repo.List(ctx, f)
}

func (d *Dispatcher) GetLog(ctx context.Context, id string) (Log, error) {
	l, err := d.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Log{}, ErrNotFound
	}
	return l, nil
}

// EmailAndSMS arma el par de mensajes que se manda al paciente en cada cambio de estado.
func EmailAndSMS(kind Kind, email, phone, subject, body, relatedID string) []Message {
	out := make([]Message, 0, 2)
	if email != "" {
		out = append(out, Message{Kind: kind, Channel: ChannelEmail, Recipient: email, Subject: subject, Body: body, RelatedID: relatedID})
	}
	if phone != "" {
		out = append(out, Message{Kind: kind, Channel: ChannelSMS, Recipient: phone, Body: subject + ": " + body, RelatedID: relatedID})
	}
	return out
}
