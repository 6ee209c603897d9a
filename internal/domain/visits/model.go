package visits

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusNoShow
}

// Una visita solo sale de pending, y solo hacia completed o no_show.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusCompleted || to == StatusNoShow)
}

type ConsumedItem struct {
	ItemID string
	Qty    int
}

type Visit struct {
	ID            string
	PatientID     string
	AppointmentID string // vacío en walk-in
	ServiceID     string
	Status        Status

	StartedAt time.Time
	EndedAt   *time.Time

	Notes        string
	TeethTreated []string
	Items        []ConsumedItem

	StartedBy   string
	CompletedBy string
	PaymentID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Filter struct {
	PatientID string
	Status    Status
	From      *time.Time // StartedAt >= From
	To        *time.Time // StartedAt < To
	Limit     int
}
