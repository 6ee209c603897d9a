package memqueue

import (
	"context"
	"errors"

	"dental-clinic/internal/domain/notifications"
)

var ErrFull = errors.New("queue full")

// Queue es una cola en proceso con buffer fijo; se usa sin RABBIT_URL.
// Los mensajes pendientes se pierden al reiniciar.
type Queue struct {
	ch chan notifications.Message
}

func New(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan notifications.Message, size)}
}

func (q *Queue) Publish(ctx context.Context, m notifications.Message) error {
	select {
	case q.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

// Consume procesa hasta que ctx termine. Un error de handle reencola el
// mensaje una vez si hay lugar.
func (q *Queue) Consume(ctx context.Context, handle func(context.Context, notifications.Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-q.ch:
			if err := handle(ctx, m); err != nil && ctx.Err() == nil {
				select {
				case q.ch <- m:
				default:
				}
			}
		}
	}
}

func (q *Queue) Len() int { return len(q.ch) }
