package schedules

import "context"

type Repository interface {
	CreateDentist(ctx context.Context, d Dentist) error
	UpdateDentist(ctx context.Context, d Dentist) error
	GetDentist(ctx context.Context, id string) (Dentist, error)
	ListDentists(ctx context.Context) ([]Dentist, error)

	// ReplaceWeek borra el horario del dentista y guarda entries (atómico).
	ReplaceWeek(ctx context.Context, dentistID string, entries []Entry) error
	ListEntries(ctx context.Context) ([]Entry, error)

	AddClosure(ctx context.Context, c Closure) error
	RemoveClosure(ctx context.Context, date string) error
	GetClosure(ctx context.Context, date string) (Closure, error)
	ListClosures(ctx context.Context) ([]Closure, error)
}
