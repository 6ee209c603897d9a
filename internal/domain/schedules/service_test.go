package schedules

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	dentists map[string]Dentist
	entries  []Entry
	closures map[string]Closure
	reads    int // lecturas de disponibilidad (dentistas, turnos, cierres)
}

func newTestRepo() *testRepo {
	return &testRepo{dentists: map[string]Dentist{}, closures: map[string]Closure{}}
}

func (r *testRepo) CreateDentist(_ context.Context, d Dentist) error {
	r.dentists[d.ID] = d
	return nil
}
func (r *testRepo) UpdateDentist(_ context.Context, d Dentist) error {
	r.dentists[d.ID] = d
	return nil
}

func (r *testRepo) GetDentist(_ context.Context, id string) (Dentist, error) {
	d, ok := r.dentists[id]
	if !ok {
		return Dentist{}, errors.New("repo: not found")
	}
	return d, nil
}

func (r *testRepo) ListDentists(_ context.Context) ([]Dentist, error) {
	r.reads++
	out := make([]Dentist, 0, len(r.dentists))
	for _, d := range r.dentists {
		out = append(out, d)
	}
	return out, nil
}

func (r *testRepo) ReplaceWeek(_ context.Context, dentistID string, entries []Entry) error {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.DentistID != dentistID {
			kept = append(kept, e)
		}
	}
	r.entries = append(kept, entries...)
	return nil
}

func (r *testRepo) ListEntries(_ context.Context) ([]Entry, error) {
	r.reads++
	return append([]Entry(nil), r.entries...), nil
}

func (r *testRepo) AddClosure(_ context.Context, c Closure) error { r.closures[c.Date] = c; return nil }

func (r *testRepo) RemoveClosure(_ context.Context, date string) error {
	if _, ok := r.closures[date]; !ok {
		return errors.New("repo: not found")
	}
	delete(r.closures, date)
	return nil
}

func (r *testRepo) GetClosure(_ context.Context, date string) (Closure, error) {
	r.reads++
	c, ok := r.closures[date]
	if !ok {
		return Closure{}, errors.New("repo: not found")
	}
	return c, nil
}

func (r *testRepo) ListClosures(_ context.Context) ([]Closure, error) {
	out := make([]Closure, 0, len(r.closures))
	for _, c := range r.closures {
		out = append(out, c)
	}
	return out, nil
}

var manila = time.FixedZone("PHT", 8*3600)

// 2026-03-02 es lunes.
func monday(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, manila) }

func setup(t *testing.T) (*Service, Dentist, Dentist) {
	t.Helper()
	svc := NewService(newTestRepo(), manila, 30)
	ctx := context.Background()

	a, err := svc.CreateDentist(ctx, DentistInput{Code: "dr-01", Name: "Dr. Cruz"})
	if err != nil {
		t.Fatalf("create dentist: %v", err)
	}
	b, err := svc.CreateDentist(ctx, DentistInput{Code: "dr-02", Name: "Dr. Lim"})
	if err != nil {
		t.Fatalf("create dentist: %v", err)
	}

	if _, err := svc.SetWeek(ctx, a.ID, []EntryInput{{Weekday: 1, Start: "09:00", End: "12:00"}, {Weekday: 1, Start: "13:00", End: "17:00"}}); err != nil {
		t.Fatalf("set week a: %v", err)
	}
	if _, err := svc.SetWeek(ctx, b.ID, []EntryInput{{Weekday: 1, Start: "10:00", End: "15:00"}}); err != nil {
		t.Fatalf("set week b: %v", err)
	}
	return svc, a, b
}

func TestService_CreateDentist_DuplicateCode(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.CreateDentist(context.Background(), DentistInput{Code: "DR-01", Name: "Other"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_SetWeek_Validation(t *testing.T) {
	svc, a, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   []EntryInput
	}{
		{"start after end", []EntryInput{{Weekday: 2, Start: "12:00", End: "09:00"}}},
		{"bad weekday", []EntryInput{{Weekday: 7, Start: "09:00", End: "10:00"}}},
		{"bad clock", []EntryInput{{Weekday: 2, Start: "9am", End: "10:00"}}},
		{"overlap", []EntryInput{{Weekday: 2, Start: "09:00", End: "11:00"}, {Weekday: 2, Start: "10:30", End: "12:00"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SetWeek(ctx, a.ID, tc.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_Capacity(t *testing.T) {
	svc, a, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"only A", monday(9, 0), monday(9, 30), 1},
		{"both", monday(10, 0), monday(11, 0), 2},
		{"A lunch, B only", monday(12, 0), monday(12, 30), 1},
		{"crosses A lunch", monday(11, 30), monday(12, 30), 1},
		{"after B", monday(15, 0), monday(16, 0), 1},
		{"before opening", monday(8, 0), monday(8, 30), 0},
		{"sunday", monday(10, 0).AddDate(0, 0, -1), monday(11, 0).AddDate(0, 0, -1), 0},
		{"utc input", monday(10, 0).UTC(), monday(10, 30).UTC(), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Capacity(ctx, tc.start, tc.end)
			if err != nil {
				t.Fatalf("Capacity error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Capacity=%d want %d", got, tc.want)
			}
		})
	}

	if _, err := svc.SetDentistStatus(ctx, a.ID, DentistInactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got, _ := svc.Capacity(ctx, monday(10, 0), monday(11, 0)); got != 1 {
		t.Fatalf("inactive dentist still counted: %d", got)
	}
}

func TestService_Capacity_Closure(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.AddClosure(ctx, "2026-03-02", "holiday", "admin"); err != nil {
		t.Fatalf("AddClosure: %v", err)
	}
	if _, err := svc.AddClosure(ctx, "2026-03-02", "again", "admin"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := svc.Capacity(ctx, monday(10, 0), monday(11, 0))
	if err != nil || got != 0 {
		t.Fatalf("closure capacity=%d err=%v", got, err)
	}
	slots, err := svc.Slots(ctx, "2026-03-02", 30, nil)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected no slots on closure, got %d err=%v", len(slots), err)
	}

	if err := svc.RemoveClosure(ctx, "2026-03-02"); err != nil {
		t.Fatalf("RemoveClosure: %v", err)
	}
	if err := svc.RemoveClosure(ctx, "2026-03-02"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Slots(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	booked := []Interval{
		{Start: monday(10, 0), End: monday(11, 0)},
		{Start: monday(10, 0), End: monday(10, 30)},
	}
	repo := svc.repo.(*testRepo)
	repo.reads = 0
	slots, err := svc.Slots(ctx, "2026-03-02", 60, booked)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	// un cierre, dentistas y turnos por día; no por franja
	if repo.reads != 3 {
		t.Fatalf("repo reads=%d want 3", repo.reads)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if !slots[0].Start.Equal(monday(9, 0)) {
		t.Fatalf("first slot %s, want 09:00", slots[0].Start)
	}

	byStart := map[string]Slot{}
	for _, s := range slots {
		byStart[s.Start.In(manila).Format("15:04")] = s
	}

	if s := byStart["10:00"]; s.Capacity != 2 || s.Remaining != 0 {
		t.Fatalf("10:00 slot = %+v", s)
	}
	if s := byStart["10:30"]; s.Capacity != 2 || s.Remaining != 1 {
		t.Fatalf("10:30 slot = %+v", s)
	}
	// 16:00-17:00 solo A
	if s, ok := byStart["16:00"]; !ok || s.Capacity != 1 {
		t.Fatalf("16:00 slot = %+v ok=%v", s, ok)
	}
	// 16:30 no entra (terminaría 17:30)
	if _, ok := byStart["16:30"]; ok {
		t.Fatal("16:30 slot must not exist for 60 min service")
	}
}

func TestParseClock(t *testing.T) {
	ok := map[string]int{"00:00": 0, "09:30": 570, "24:00": 1440}
	for in, want := range ok {
		got, err := parseClock(in)
		if err != nil || got != want {
			t.Fatalf("parseClock(%q)=%d,%v want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "9:30", "24:30", "12:60", "ab:cd"} {
		if _, err := parseClock(bad); err == nil {
			t.Fatalf("parseClock(%q) expected error", bad)
		}
	}
}
