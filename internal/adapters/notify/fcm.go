package notify

import (
	"context"
	"errors"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"dental-clinic/internal/domain/notifications"
)

// FCMClient es el subconjunto de *messaging.Client que usamos.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender manda push. Recipient es un token de dispositivo o "topic:<nombre>".
type FCMSender struct {
	client FCMClient
}

func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMSender{client: client}, nil
}

func NewFCMSenderWithClient(client FCMClient) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, m notifications.Message) error {
	to := strings.TrimSpace(m.Recipient)
	if to == "" {
		return errors.New("fcm: empty recipient")
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{Title: m.Subject, Body: m.Body},
		Data:         map[string]string{"kind": string(m.Kind), "related_id": m.RelatedID},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if topic, ok := strings.CutPrefix(to, "topic:"); ok {
		msg.Topic = topic
	} else {
		msg.Token = to
	}
	_, err := s.client.Send(ctx, msg)
	return err
}
