package payments

import "time"

type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

type Status string

const (
	StatusUnpaid   Status = "unpaid"
	StatusPending  Status = "pending" // cargo con tarjeta esperando confirmación
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Payment guarda montos en centavos de Currency.
type Payment struct {
	ID            string
	PatientID     string
	VisitID       string
	AppointmentID string
	Description   string

	AmountCents   int64
	RefundedCents int64
	Currency      string

	Method      Method
	Status      Status
	Provider    string
	ProviderRef string
	FailureMsg  string

	PaidAt     *time.Time
	RecordedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Refundable es lo que aún se puede devolver.
func (p Payment) Refundable() int64 {
	if p.Status != StatusPaid {
		return 0
	}
	return p.AmountCents - p.RefundedCents
}

type Filter struct {
	PatientID string
	Status    Status
	From      *time.Time // CreatedAt >= From
	To        *time.Time // CreatedAt < To
	Limit     int
}

// Charge es la vista del cargo que devuelve el gateway.
type Charge struct {
	ID             string
	Status         string // successful | failed | pending | ...
	AmountCents    int64
	Currency       string
	FailureMessage string
}

const (
	ChargeSuccessful = "successful"
	ChargeFailed     = "failed"
)

type Receipt struct {
	Reference     string     `json:"reference"`
	PaymentID     string     `json:"payment_id"`
	PatientID     string     `json:"patient_id"`
	PatientName   string     `json:"patient_name"`
	Description   string     `json:"description"`
	AmountCents   int64      `json:"amount_cents"`
	RefundedCents int64      `json:"refunded_cents"`
	Currency      string     `json:"currency"`
	Method        string     `json:"method,omitempty"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	IssuedAt      time.Time  `json:"issued_at"`
}
