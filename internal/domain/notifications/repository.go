package notifications

import "context"

type Repository interface {
	Create(ctx context.Context, l Log) error
	Update(ctx context.Context, l Log) error
	GetByID(ctx context.Context, id string) (Log, error)
	// List ordena por CreatedAt descendente.
	List(ctx context.Context, f LogFilter) ([]Log, error)
}

// Queue transporta mensajes entre el Dispatcher y el Worker.
type Queue interface {
	Publish(ctx context.Context, m Message) error
	// Consume bloquea hasta que ctx termine; handle se llama por mensaje.
	Consume(ctx context.Context, handle func(context.Context, Message) error) error
}

// Sender entrega un mensaje por un canal concreto (Mailtrap, SNS, FCM...).
type Sender interface {
	Send(ctx context.Context, m Message) error
}
