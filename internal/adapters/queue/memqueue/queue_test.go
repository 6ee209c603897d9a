package memqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"dental-clinic/internal/domain/notifications"
)

func TestPublishConsume(t *testing.T) {
	q := New(2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = q.Publish(ctx, notifications.Message{ID: "m1"})
	_ = q.Publish(ctx, notifications.Message{ID: "m2"})
	if err := q.Publish(ctx, notifications.Message{ID: "m3"}); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	got := make(chan string, 2)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, m notifications.Message) error {
			got <- m.ID
			return nil
		})
	}()

	for _, want := range []string{"m1", "m2"} {
		select {
		case id := <-got:
			if id != want {
				t.Fatalf("got %s want %s", id, want)
			}
		case <-ctx.Done():
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestConsumeRequeuesOnError(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = q.Publish(ctx, notifications.Message{ID: "m1"})

	calls := 0
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, m notifications.Message) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("message was not retried")
	}
}
