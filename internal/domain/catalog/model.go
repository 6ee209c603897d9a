package catalog

import "time"

// Service es un servicio dental ofrecido por la clínica (limpieza, extracción, etc).
type Service struct {
	ID          string
	Name        string
	Description string

	PriceCents      int64
	DurationMinutes int

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
