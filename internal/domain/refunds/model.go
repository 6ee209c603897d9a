package refunds

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved" // efectivo: falta entregar el dinero
	StatusRejected  Status = "rejected"
	StatusProcessed Status = "processed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusProcessed:
		return true
	}
	return false
}

// Open: la solicitud aún bloquea otra sobre el mismo pago.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusApproved
}

type Request struct {
	ID          string
	PaymentID   string
	PatientID   string
	AmountCents int64
	Reason      string

	Status      Status
	ReviewedBy  string
	ReviewNote  string
	ProviderRef string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}
