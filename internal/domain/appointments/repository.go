package appointments

import (
	"context"
	"errors"
	"time"
)

// Los repos devuelven estos errores desde CreateChecked.
var (
	ErrSlotFull      = errors.New("slot is full")
	ErrAlreadyBooked = errors.New("patient already has an appointment that day")
)

type Repository interface {
	// CreateChecked inserta la cita verificando de forma atómica:
	// - que el paciente no tenga otra cita pending/approved con StartsAt en [dayStart, dayEnd)
	// - que las citas pending/approved que se solapan con [StartsAt, EndsAt) sean < capacity
	CreateChecked(ctx context.Context, a Appointment, dayStart, dayEnd time.Time, capacity int) error
	Update(ctx context.Context, a Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)
	// Overlapping devuelve citas pending/approved que se solapan con [from, to).
	Overlapping(ctx context.Context, from, to time.Time) ([]Appointment, error)
}
