package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/platform/logger"
)

// Queue publica en un exchange topic y consume de una cola durable ligada a él.
// Routing key: "notify.<canal>".
type Queue struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	pubMu    sync.Mutex
	exchange string
	queue    string
	log      logger.Logger
}

func Dial(url, exchange, queue string, log logger.Logger) (*Queue, error) {
	if log == nil {
		log = logger.Nop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declare(ch, exchange, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Queue{
		conn:     conn,
		pubCh:    ch,
		exchange: exchange,
		queue:    queue,
		log:      log.With(map[string]any{"component": "rabbitmq"}),
	}, nil
}

func declare(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "notify.*", exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func routingKey(c notifications.Channel) string {
	return "notify." + string(c)
}

func (q *Queue) Publish(ctx context.Context, m notifications.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	// amqp.Channel no es seguro para publicar desde varias goroutines
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.pubCh.PublishWithContext(ctx, q.exchange, routingKey(m.Channel), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.ID,
		Body:         b,
	})
}

// Consume abre un canal propio con prefetch 1. Ack si handle termina bien,
// requeue si falla; los cuerpos ilegibles se descartan.
func (q *Queue) Consume(ctx context.Context, handle func(context.Context, notifications.Message) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("rabbitmq: delivery channel closed")
			}
			var m notifications.Message
			if err := json.Unmarshal(d.Body, &m); err != nil {
				q.log.Error("drop malformed message", map[string]any{"error": err})
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, m); err != nil {
				q.log.Warn("requeue message", map[string]any{"message_id": m.ID, "error": err})
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (q *Queue) Close() error {
	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
