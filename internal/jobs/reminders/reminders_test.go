package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"dental-clinic/internal/domain/appointments"
)

type fakeAppointments struct {
	due      []appointments.Appointment
	from, to time.Time
	sent     []string
	failID   string
	expired  int
}

func (f *fakeAppointments) DueForReminder(_ context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	f.from, f.to = from, to
	return f.due, nil
}

func (f *fakeAppointments) SendReminder(_ context.Context, a appointments.Appointment) error {
	if a.ID == f.failID {
		return errors.New("queue down")
	}
	f.sent = append(f.sent, a.ID)
	return nil
}

func (f *fakeAppointments) ExpireStale(context.Context, time.Time) (int, error) {
	f.expired++
	return 1, nil
}

func TestSendDue(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fa := &fakeAppointments{
		due:    []appointments.Appointment{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}},
		failID: "a2",
	}
	r := New(fa, Options{LeadTime: 24 * time.Hour})
	r.now = func() time.Time { return now }

	n, err := r.SendDue(context.Background())
	if err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if n != 2 || len(fa.sent) != 2 {
		t.Fatalf("sent=%d %v", n, fa.sent)
	}
	if !fa.from.Equal(now) || !fa.to.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("window %v..%v", fa.from, fa.to)
	}
}

func TestTick_ExpiresStale(t *testing.T) {
	fa := &fakeAppointments{}
	r := New(fa, Options{})
	r.Tick(context.Background())
	if fa.expired != 1 {
		t.Fatalf("expired calls=%d", fa.expired)
	}
}

func TestStartStop(t *testing.T) {
	r := New(&fakeAppointments{}, Options{Every: time.Hour})
	stop, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}
