package visits

import "context"

type Repository interface {
	Create(ctx context.Context, v Visit) error
	Update(ctx context.Context, v Visit) error
	GetByID(ctx context.Context, id string) (Visit, error)
	// GetByAppointment devuelve la visita más reciente de la cita.
	GetByAppointment(ctx context.Context, appointmentID string) (Visit, error)
	List(ctx context.Context, f Filter) ([]Visit, error)
}
