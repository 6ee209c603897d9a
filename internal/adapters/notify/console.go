package notify

import (
	"context"

	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/platform/logger"
)

// ConsoleSender sólo registra el mensaje; se usa cuando el canal no está configurado.
type ConsoleSender struct {
	log logger.Logger
}

func NewConsoleSender(log logger.Logger) *ConsoleSender {
	if log == nil {
		log = logger.Nop()
	}
	return &ConsoleSender{log: log.With(map[string]any{"component": "console-sender"})}
}

func (s *ConsoleSender) Send(ctx context.Context, m notifications.Message) error {
	s.log.Info("notification", map[string]any{
		"channel":   string(m.Channel),
		"kind":      string(m.Kind),
		"recipient": m.Recipient,
		"subject":   m.Subject,
		"body":      m.Body,
	})
	return nil
}
