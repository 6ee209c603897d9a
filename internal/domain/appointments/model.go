package appointments

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Holds indica si la cita ocupa capacidad en la agenda.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusNoShow, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelStaff  Channel = "staff"
)

type Appointment struct {
	ID        string
	Reference string // 8 caracteres A-Z0-9 para mostrar al paciente

	PatientID string
	ServiceID string
	DentistID string

	StartsAt time.Time
	EndsAt   time.Time

	Status Status
	Notes  string

	BookedIP string
	Channel  Channel

	CancelReason string
	DecidedBy    string
	DecidedAt    *time.Time

	ReminderSentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Filter struct {
	PatientID string
	Status    Status
	From      *time.Time // StartsAt >= From
	To        *time.Time // StartsAt < To
	Limit     int
}
