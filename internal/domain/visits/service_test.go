package visits

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/catalog"
	"dental-clinic/internal/domain/inventory"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/payments"
)

type testRepo struct {
	byID      map[string]Visit
	updateErr error
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Visit{}} }

func (r *testRepo) Create(_ context.Context, v Visit) error { r.byID[v.ID] = v; return nil }

func (r *testRepo) Update(_ context.Context, v Visit) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.byID[v.ID] = v
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Visit, error) {
	v, ok := r.byID[id]
	if !ok {
		return Visit{}, errors.New("repo: not found")
	}
	return v, nil
}

func (r *testRepo) GetByAppointment(_ context.Context, appointmentID string) (Visit, error) {
	for _, v := range r.byID {
		if v.AppointmentID == appointmentID {
			return v, nil
		}
	}
	return Visit{}, errors.New("repo: not found")
}

func (r *testRepo) List(_ context.Context, f Filter) ([]Visit, error) {
	out := []Visit{}
	for _, v := range r.byID {
		if f.PatientID != "" && v.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

type fakeAppointments map[string]appointments.Appointment

func (f fakeAppointments) Get(_ context.Context, id string) (appointments.Appointment, error) {
	a, ok := f[id]
	if !ok {
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	return a, nil
}

func (f fakeAppointments) Settle(_ context.Context, id string, to appointments.Status, _ string) (appointments.Appointment, error) {
	a := f[id]
	if !appointments.CanTransition(a.Status, to) {
		return appointments.Appointment{}, appointments.ErrBadState
	}
	a.Status = to
	f[id] = a
	return a, nil
}

type fakeCatalog map[string]catalog.Service

func (f fakeCatalog) Get(_ context.Context, id string) (catalog.Service, error) {
	s, ok := f[id]
	if !ok {
		return catalog.Service{}, catalog.ErrNotFound
	}
	return s, nil
}

func (f fakeCatalog) GetActive(ctx context.Context, id string) (catalog.Service, error) {
	s, err := f.Get(ctx, id)
	if err != nil || !s.IsActive {
		return catalog.Service{}, catalog.ErrInactive
	}
	return s, nil
}

// fakeInventory descuenta todo o nada, como el servicio real. Un lote por item.
type fakeInventory struct {
	stock      map[string]int
	calls      int
	consumeErr error
}

func (f *fakeInventory) Consume(_ context.Context, lines []inventory.Line, _, _ string) ([]inventory.Movement, error) {
	f.calls++
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	for _, l := range lines {
		if f.stock[l.ItemID] < l.Qty {
			return nil, inventory.ErrInsufficientStock
		}
	}
	out := make([]inventory.Movement, 0, len(lines))
	for _, l := range lines {
		f.stock[l.ItemID] -= l.Qty
		out = append(out, inventory.Movement{ItemID: l.ItemID, BatchID: l.ItemID, Qty: -l.Qty})
	}
	return out, nil
}

func (f *fakeInventory) Adjust(_ context.Context, batchID string, delta int, _, _ string) (inventory.Batch, error) {
	f.stock[batchID] += delta
	return inventory.Batch{ID: batchID, ItemID: batchID, QtyOnHand: f.stock[batchID]}, nil
}

type fakePayments struct {
	created []payments.VisitCharge
	err     error
}

func (f *fakePayments) CreateForVisit(_ context.Context, in payments.VisitCharge) (payments.Payment, error) {
	if f.err != nil {
		return payments.Payment{}, f.err
	}
	f.created = append(f.created, in)
	return payments.Payment{ID: "pay-" + in.VisitID, VisitID: in.VisitID, AmountCents: in.AmountCents, Status: payments.StatusUnpaid}, nil
}

type fakePatients map[string]patients.Patient

func (f fakePatients) GetByID(_ context.Context, id string) (patients.Patient, error) {
	p, ok := f[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, nil
}

func (f fakePatients) GetByUserID(_ context.Context, userID string) (patients.Patient, error) {
	for _, p := range f {
		if p.UserID == userID {
			return p, nil
		}
	}
	return patients.Patient{}, patients.ErrNotFound
}

type fixture struct {
	svc   *Service
	repo  *testRepo
	appts fakeAppointments
	inv   *fakeInventory
	pay   *fakePayments
}

func newFixture() fixture {
	f := fixture{
		repo: newTestRepo(),
		appts: fakeAppointments{
			"a-approved": {ID: "a-approved", PatientID: "p1", ServiceID: "filling", Status: appointments.StatusApproved},
			"a-pending":  {ID: "a-pending", PatientID: "p1", ServiceID: "filling", Status: appointments.StatusPending},
		},
		inv: &fakeInventory{stock: map[string]int{"gloves": 10, "composite": 1}},
		pay: &fakePayments{},
	}
	f.svc = NewService(f.repo, Deps{
		Appointments: f.appts,
		Catalog: fakeCatalog{
			"filling": {ID: "filling", Name: "Composite filling", PriceCents: 250000, DurationMinutes: 45, IsActive: true},
			"old":     {ID: "old", Name: "Old", DurationMinutes: 30},
		},
		Inventory: f.inv,
		Payments:  f.pay,
		Patients:  fakePatients{"p1": {ID: "p1", UserID: "u1"}},
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.Status != StatusPending || v.PatientID != "p1" || v.ServiceID != "filling" {
		t.Fatalf("unexpected %+v", v)
	}
	if _, err := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second open visit: err=%v", err)
	}
	if _, err := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-pending"}); !errors.Is(err, ErrBadState) {
		t.Fatalf("unapproved appointment: err=%v", err)
	}

	walkIn, err := f.svc.Start(ctx, StartInput{StaffID: "s1", PatientID: "p1", ServiceID: "filling"})
	if err != nil || walkIn.AppointmentID != "" {
		t.Fatalf("walk-in: %+v %v", walkIn, err)
	}
	if _, err := f.svc.Start(ctx, StartInput{StaffID: "s1", PatientID: "p1", ServiceID: "old"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("inactive service: err=%v", err)
	}
	if _, err := f.svc.Start(ctx, StartInput{StaffID: "s1", PatientID: "p1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("walk-in without service: err=%v", err)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})

	got, err := f.svc.Complete(ctx, CompleteInput{
		StaffID: "s1",
		VisitID: v.ID,
		Notes:   "occlusal filling",
		Teeth:   []string{"46", " 46", "47"},
		Items:   []ConsumedItem{{ItemID: "gloves", Qty: 2}, {ItemID: "composite", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != StatusCompleted || got.EndedAt == nil || got.PaymentID != "pay-"+v.ID {
		t.Fatalf("unexpected %+v", got)
	}
	if len(got.TeethTreated) != 2 {
		t.Fatalf("teeth=%v", got.TeethTreated)
	}
	if f.appts["a-approved"].Status != appointments.StatusCompleted {
		t.Fatalf("appointment status=%s", f.appts["a-approved"].Status)
	}
	if f.inv.stock["gloves"] != 8 || f.inv.stock["composite"] != 0 {
		t.Fatalf("stock=%v", f.inv.stock)
	}
	if len(f.pay.created) != 1 || f.pay.created[0].AmountCents != 250000 {
		t.Fatalf("payments=%v", f.pay.created)
	}
}

func TestComplete_InsufficientStockLeavesVisitUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})

	_, err := f.svc.Complete(ctx, CompleteInput{
		StaffID: "s1",
		VisitID: v.ID,
		Items:   []ConsumedItem{{ItemID: "gloves", Qty: 2}, {ItemID: "composite", Qty: 5}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err=%v want ErrInsufficientStock", err)
	}
	if f.repo.byID[v.ID].Status != StatusPending {
		t.Fatalf("visit status=%s", f.repo.byID[v.ID].Status)
	}
	if f.appts["a-approved"].Status != appointments.StatusApproved {
		t.Fatalf("appointment status=%s", f.appts["a-approved"].Status)
	}
	if f.inv.stock["gloves"] != 10 || len(f.pay.created) != 0 {
		t.Fatalf("side effects: stock=%v payments=%v", f.inv.stock, f.pay.created)
	}
}

func TestComplete_PaymentFailureRestocksAndCanRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})
	in := CompleteInput{StaffID: "s1", VisitID: v.ID, Items: []ConsumedItem{{ItemID: "gloves", Qty: 2}}}

	f.pay.err = errors.New("db down")
	if _, err := f.svc.Complete(ctx, in); err == nil {
		t.Fatal("expected error")
	}
	if f.inv.stock["gloves"] != 10 {
		t.Fatalf("stock not restored: %v", f.inv.stock)
	}
	if f.appts["a-approved"].Status != appointments.StatusApproved {
		t.Fatalf("appointment status=%s", f.appts["a-approved"].Status)
	}
	if f.repo.byID[v.ID].Status != StatusPending {
		t.Fatalf("visit status=%s", f.repo.byID[v.ID].Status)
	}

	f.pay.err = nil
	got, err := f.svc.Complete(ctx, in)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("retry: %+v %v", got, err)
	}
	if f.inv.stock["gloves"] != 8 || len(f.pay.created) != 1 {
		t.Fatalf("stock=%v payments=%v", f.inv.stock, f.pay.created)
	}
}

func TestComplete_VisitUpdateFailureCanRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})
	in := CompleteInput{StaffID: "s1", VisitID: v.ID, Items: []ConsumedItem{{ItemID: "gloves", Qty: 2}}}

	f.repo.updateErr = errors.New("db down")
	if _, err := f.svc.Complete(ctx, in); err == nil {
		t.Fatal("expected error")
	}
	if f.inv.stock["gloves"] != 10 {
		t.Fatalf("stock not restored: %v", f.inv.stock)
	}
	// la cita ya quedó completed; el reintento debe cerrarla igual
	if f.appts["a-approved"].Status != appointments.StatusCompleted {
		t.Fatalf("appointment status=%s", f.appts["a-approved"].Status)
	}

	f.repo.updateErr = nil
	got, err := f.svc.Complete(ctx, in)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("retry: %+v %v", got, err)
	}
	if f.repo.byID[v.ID].Status != StatusCompleted || f.inv.stock["gloves"] != 8 {
		t.Fatalf("visit=%s stock=%v", f.repo.byID[v.ID].Status, f.inv.stock)
	}
}

func TestComplete_StockChangedIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})

	f.inv.consumeErr = inventory.ErrStockChanged
	_, err := f.svc.Complete(ctx, CompleteInput{StaffID: "s1", VisitID: v.ID, Items: []ConsumedItem{{ItemID: "gloves", Qty: 1}}})
	if !errors.Is(err, ErrStockChanged) {
		t.Fatalf("err=%v want ErrStockChanged", err)
	}

	rec := httptest.NewRecorder()
	writeError(rec, err)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want 409", rec.Code)
	}
}

func TestTransitions_OnlyFromPending(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusNoShow, true},
		{StatusCompleted, StatusNoShow, false},
		{StatusNoShow, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}

	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})
	if _, err := f.svc.Complete(ctx, CompleteInput{StaffID: "s1", VisitID: v.ID}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.svc.Complete(ctx, CompleteInput{StaffID: "s1", VisitID: v.ID}); !errors.Is(err, ErrBadState) {
		t.Fatalf("complete twice: err=%v", err)
	}
	if _, err := f.svc.MarkNoShow(ctx, "s1", v.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("no-show after complete: err=%v", err)
	}
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", AppointmentID: "a-approved"})

	got, err := f.svc.MarkNoShow(ctx, "s1", v.ID)
	if err != nil || got.Status != StatusNoShow {
		t.Fatalf("MarkNoShow: %+v %v", got, err)
	}
	if f.appts["a-approved"].Status != appointments.StatusNoShow {
		t.Fatalf("appointment status=%s", f.appts["a-approved"].Status)
	}
	if _, err := f.svc.Complete(ctx, CompleteInput{StaffID: "s1", VisitID: v.ID}); !errors.Is(err, ErrBadState) {
		t.Fatalf("complete after no-show: err=%v", err)
	}
	if len(f.pay.created) != 0 {
		t.Fatalf("no-show must not bill: %v", f.pay.created)
	}
}

func TestListOpen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", PatientID: "p1", ServiceID: "filling"})
	b, _ := f.svc.Start(ctx, StartInput{StaffID: "s1", PatientID: "p1", ServiceID: "filling"})
	if _, err := f.svc.MarkNoShow(ctx, "s1", b.ID); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}

	open, err := f.svc.ListOpen(ctx)
	if err != nil || len(open) != 1 || open[0].ID != a.ID {
		t.Fatalf("open=%v err=%v", open, err)
	}
	all, _ := f.svc.ListByPatient(ctx, "p1")
	if len(all) != 2 {
		t.Fatalf("by patient=%d", len(all))
	}
	if !f.svc.OwnsPatient(ctx, "u1", "p1") || f.svc.OwnsPatient(ctx, "u2", "p1") {
		t.Fatal("OwnsPatient mismatch")
	}
}
