package schedules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type DentistStatus string

const (
	DentistActive   DentistStatus = "active"
	DentistInactive DentistStatus = "inactive"
)

type Dentist struct {
	ID     string
	Code   string // p.ej. "DR-01", único
	Name   string
	Status DentistStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry es un turno semanal: Weekday 0=domingo .. 6=sábado, horas "HH:MM" en hora local de la clínica.
type Entry struct {
	ID        string
	DentistID string
	Weekday   int
	Start     string
	End       string
}

// Closure es un día completo sin atención (feriado, mantenimiento).
type Closure struct {
	Date      string // YYYY-MM-DD
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// Slot es una franja ofertable para un servicio de cierta duración.
type Slot struct {
	Start     time.Time
	End       time.Time
	Capacity  int
	Remaining int
}

// Interval es una cita ya tomada (pending/approved) que consume capacidad.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && start.Before(i.End)
}

// parseClock convierte "HH:MM" en minutos desde medianoche. "24:00" es válido como fin de día.
func parseClock(v string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	if hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	return hh*60 + mm, nil
}

func (e Entry) minutes() (int, int, error) {
	s, err := parseClock(e.Start)
	if err != nil {
		return 0, 0, err
	}
	en, err := parseClock(e.End)
	if err != nil {
		return 0, 0, err
	}
	return s, en, nil
}
