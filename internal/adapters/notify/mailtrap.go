package notify

import (
	"context"
	"errors"
	"strings"

	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/platform/httpclient"
)

// MailtrapSender usa la Send API de Mailtrap (POST /api/send).
type MailtrapSender struct {
	client   *httpclient.Client
	from     string
	fromName string
}

func NewMailtrapSender(client *httpclient.Client, from, fromName string) *MailtrapSender {
	return &MailtrapSender{client: client, from: from, fromName: fromName}
}

type mailtrapAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailtrapRequest struct {
	From     mailtrapAddress   `json:"from"`
	To       []mailtrapAddress `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text"`
	Category string            `json:"category,omitempty"`
}

type mailtrapResponse struct {
	Success    bool     `json:"success"`
	MessageIDs []string `json:"message_ids"`
	Errors     []string `json:"errors"`
}

func (s *MailtrapSender) Send(ctx context.Context, m notifications.Message) error {
	if strings.TrimSpace(m.Recipient) == "" {
		return errors.New("mailtrap: empty recipient")
	}
	req := mailtrapRequest{
		From:     mailtrapAddress{Email: s.from, Name: s.fromName},
		To:       []mailtrapAddress{{Email: m.Recipient}},
		Subject:  m.Subject,
		Text:     m.Body,
		Category: string(m.Kind),
	}
	var resp mailtrapResponse
	if err := s.client.PostJSON(ctx, "/api/send", req, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return errors.New("mailtrap: " + strings.Join(resp.Errors, "; "))
	}
	return nil
}
