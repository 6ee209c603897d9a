package schedules

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

type Service struct {
	repo Repository
	loc  *time.Location
	step time.Duration
	now  func() time.Time
}

// NewService: loc es la zona de la clínica; slotMinutes el paso entre franjas.
func NewService(repo Repository, loc *time.Location, slotMinutes int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	return &Service{
		repo: repo,
		loc:  loc,
		step: time.Duration(slotMinutes) * time.Minute,
		now:  time.Now,
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// ---- dentistas ----

type DentistInput struct {
	Code string
	Name string
}

func (s *Service) CreateDentist(ctx context.Context, in DentistInput) (Dentist, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return Dentist{}, ErrInvalidInput
	}

	all, err := s.repo.ListDentists(ctx)
	if err != nil {
		return Dentist{}, err
	}
	for _, d := range all {
		if d.Code == code {
			return Dentist{}, ErrConflict
		}
	}

	now := s.now()
	d := Dentist{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      name,
		Status:    DentistActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateDentist(ctx, d); err != nil {
		return Dentist{}, err
	}
	return d, nil
}

func (s *Service) SetDentistStatus(ctx context.Context, id string, st DentistStatus) (Dentist, error) {
	if st != DentistActive && st != DentistInactive {
		return Dentist{}, ErrInvalidInput
	}
	d, err := s.GetDentist(ctx, id)
	if err != nil {
		return Dentist{}, err
	}
	if d.Status == st {
		return d, nil
	}
	d.Status = st
	d.UpdatedAt = s.now()
	if err := s.repo.UpdateDentist(ctx, d); err != nil {
		return Dentist{}, err
	}
	return d, nil
}

func (s *Service) GetDentist(ctx context.Context, id string) (Dentist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Dentist{}, ErrInvalidInput
	}
	d, err := s.repo.GetDentist(ctx, id)
	if err != nil {
		return Dentist{}, ErrNotFound
	}
	return d, nil
}

func (s *Service) ListDentists(ctx context.Context) ([]Dentist, error) {
	return s.repo.ListDentists(ctx)
}

// ---- horario semanal ----

type EntryInput struct {
	Weekday int
	Start   string
	End     string
}

// SetWeek reemplaza el horario completo del dentista. Entries del mismo día no pueden solaparse.
func (s *Service) SetWeek(ctx context.Context, dentistID string, in []EntryInput) ([]Entry, error) {
	d, err := s.GetDentist(ctx, dentistID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(in))
	for _, e := range in {
		if e.Weekday < 0 || e.Weekday > 6 {
			return nil, ErrInvalidInput
		}
		entry := Entry{
			ID:        uuid.NewString(),
			DentistID: d.ID,
			Weekday:   e.Weekday,
			Start:     strings.TrimSpace(e.Start),
			End:       strings.TrimSpace(e.End),
		}
		start, end, err := entry.minutes()
		if err != nil || start >= end {
			return nil, ErrInvalidInput
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		return entries[i].Start < entries[j].Start
	})
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if prev.Weekday == cur.Weekday && cur.Start < prev.End {
			return nil, ErrInvalidInput
		}
	}

	if err := s.repo.ReplaceWeek(ctx, d.ID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) Week(ctx context.Context, dentistID string) ([]Entry, error) {
	all, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0)
	for _, e := range all {
		if e.DentistID == dentistID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- cierres ----

func (s *Service) AddClosure(ctx context.Context, date, reason, by string) (Closure, error) {
	date = strings.TrimSpace(date)
	if _, err := time.ParseInLocation(time.DateOnly, date, s.loc); err != nil {
		return Closure{}, ErrInvalidInput
	}
	if _, err := s.repo.GetClosure(ctx, date); err == nil {
		return Closure{}, ErrConflict
	}
	c := Closure{
		Date:      date,
		Reason:    strings.TrimSpace(reason),
		CreatedBy: strings.TrimSpace(by),
		CreatedAt: s.now(),
	}
	if err := s.repo.AddClosure(ctx, c); err != nil {
		return Closure{}, err
	}
	return c, nil
}

func (s *Service) RemoveClosure(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)
	if date == "" {
		return ErrInvalidInput
	}
	if err := s.repo.RemoveClosure(ctx, date); err != nil {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListClosures(ctx context.Context) ([]Closure, error) {
	return s.repo.ListClosures(ctx)
}

// ---- disponibilidad ----

// Capacity es la cantidad de dentistas activos cuyo turno cubre [start,end) completo.
// Devuelve 0 en días cerrados o si el rango cruza medianoche (hora local).
func (s *Service) Capacity(ctx context.Context, start, end time.Time) (int, error) {
	if !start.Before(end) {
		return 0, ErrInvalidInput
	}
	ls, le := start.In(s.loc), end.In(s.loc)

	day := ls.Format(time.DateOnly)
	if _, err := s.repo.GetClosure(ctx, day); err == nil {
		return 0, nil
	}

	byDentist, err := s.activeEntries(ctx, int(ls.Weekday()))
	if err != nil {
		return 0, err
	}
	return coverage(byDentist, ls, le), nil
}

// coverage cuenta dentistas con algún turno que cubre [start,end) en hora local.
func coverage(byDentist map[string][]Entry, start, end time.Time) int {
	startMin := start.Hour()*60 + start.Minute()
	endMin := int(end.Sub(midnight(start)) / time.Minute)
	if endMin > 24*60 {
		return 0
	}

	n := 0
	for _, entries := range byDentist {
		for _, e := range entries {
			es, ee, err := e.minutes()
			if err != nil {
				continue
			}
			if es <= startMin && endMin <= ee {
				n++
				break
			}
		}
	}
	return n
}

// Slots arma las franjas del día cada N minutos sobre la unión de turnos.
// date es YYYY-MM-DD en hora local; booked son las citas que ya ocupan capacidad.
func (s *Service) Slots(ctx context.Context, date string, durationMinutes int, booked []Interval) ([]Slot, error) {
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), s.loc)
	if err != nil || durationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.repo.GetClosure(ctx, day.Format(time.DateOnly)); err == nil {
		return []Slot{}, nil
	}

	byDentist, err := s.activeEntries(ctx, int(day.Weekday()))
	if err != nil {
		return nil, err
	}

	first, last := -1, -1
	for _, entries := range byDentist {
		for _, e := range entries {
			es, ee, err := e.minutes()
			if err != nil {
				continue
			}
			if first < 0 || es < first {
				first = es
			}
			if ee > last {
				last = ee
			}
		}
	}
	if first < 0 {
		return []Slot{}, nil
	}

	dur := time.Duration(durationMinutes) * time.Minute
	open := day.Add(time.Duration(first) * time.Minute)
	closeAt := day.Add(time.Duration(last) * time.Minute)

	out := make([]Slot, 0)
	for st := open; !st.Add(dur).After(closeAt); st = st.Add(s.step) {
		en := st.Add(dur)
		// cierre y turnos ya cargados una vez para todo el día
		capacity := coverage(byDentist, st.In(s.loc), en.In(s.loc))
		if capacity == 0 {
			continue
		}
		taken := 0
		for _, b := range booked {
			if b.Overlaps(st, en) {
				taken++
			}
		}
		remaining := capacity - taken
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Slot{Start: st, End: en, Capacity: capacity, Remaining: remaining})
	}
	return out, nil
}

// activeEntries agrupa por dentista activo los turnos del weekday.
func (s *Service) activeEntries(ctx context.Context, weekday int) (map[string][]Entry, error) {
	dentists, err := s.repo.ListDentists(ctx)
	if err != nil {
		return nil, err
	}
	active := map[string]bool{}
	for _, d := range dentists {
		if d.Status == DentistActive {
			active[d.ID] = true
		}
	}

	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string][]Entry{}
	for _, e := range entries {
		if e.Weekday == weekday && active[e.DentistID] {
			out[e.DentistID] = append(out[e.DentistID], e)
		}
	}
	return out, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
