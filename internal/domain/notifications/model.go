package notifications

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

type Kind string

const (
	KindAppointmentBooked    Kind = "appointment.booked"
	KindAppointmentApproved  Kind = "appointment.approved"
	KindAppointmentRejected  Kind = "appointment.rejected"
	KindAppointmentCancelled Kind = "appointment.cancelled"
	KindAppointmentNoShow    Kind = "appointment.no_show"
	KindAppointmentReminder  Kind = "appointment.reminder"
	KindDevicePending        Kind = "device.pending"
	KindPaymentPaid          Kind = "payment.paid"
	KindRefundUpdated        Kind = "refund.updated"
)

type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Message es lo que viaja por la cola (JSON).
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Channel   Channel   `json:"channel"`
	Recipient string    `json:"recipient"` // email, teléfono E.164 o token FCM
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	RelatedID string    `json:"related_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Log registra el destino de cada mensaje; ID = Message.ID.
type Log struct {
	ID        string
	Kind      Kind
	Channel   Channel
	Recipient string
	Subject   string
	RelatedID string

	Status    Status
	Attempts  int
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
	SentAt    *time.Time
}

type LogFilter struct {
	Status  Status
	Channel Channel
	Limit   int
}
