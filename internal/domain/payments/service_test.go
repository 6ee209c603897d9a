package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/ports/auth"
)

type testRepo struct {
	byID map[string]Payment
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Payment{}} }

func (r *testRepo) Create(_ context.Context, p Payment) error { r.byID[p.ID] = p; return nil }
func (r *testRepo) Update(_ context.Context, p Payment) error { r.byID[p.ID] = p; return nil }

func (r *testRepo) GetByID(_ context.Context, id string) (Payment, error) {
	p, ok := r.byID[id]
	if !ok {
		return Payment{}, errors.New("repo: not found")
	}
	return p, nil
}

func (r *testRepo) GetByVisit(_ context.Context, visitID string) (Payment, error) {
	for _, p := range r.byID {
		if p.VisitID == visitID {
			return p, nil
		}
	}
	return Payment{}, errors.New("repo: not found")
}

func (r *testRepo) GetByProviderRef(_ context.Context, ref string) (Payment, error) {
	for _, p := range r.byID {
		if p.ProviderRef == ref {
			return p, nil
		}
	}
	return Payment{}, errors.New("repo: not found")
}

func (r *testRepo) List(_ context.Context, f Filter) ([]Payment, error) {
	out := []Payment{}
	for _, p := range r.byID {
		if f.PatientID != "" && p.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeGateway struct {
	status   string
	charges  map[string]Charge
	refunds  []int64
	failNext error
}

func newFakeGateway(status string) *fakeGateway {
	return &fakeGateway{status: status, charges: map[string]Charge{}}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Charge(_ context.Context, req ChargeRequest) (Charge, error) {
	if g.failNext != nil {
		return Charge{}, g.failNext
	}
	ch := Charge{ID: "chrg_" + req.Metadata["payment_id"].(string), Status: g.status, AmountCents: req.AmountCents, Currency: req.Currency}
	if g.status == ChargeFailed {
		ch.FailureMessage = "insufficient funds"
	}
	g.charges[ch.ID] = ch
	return ch, nil
}

func (g *fakeGateway) GetCharge(_ context.Context, id string) (Charge, error) {
	ch, ok := g.charges[id]
	if !ok {
		return Charge{}, errors.New("no such charge")
	}
	return ch, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, amount int64) (string, error) {
	g.refunds = append(g.refunds, amount)
	return "rfnd_1", nil
}

func (g *fakeGateway) EventCharge(_ context.Context, eventID string) (string, error) {
	if eventID == "evnt_forged" {
		return "", errors.New("event not found")
	}
	for id := range g.charges {
		return id, nil
	}
	return "", errors.New("event not found")
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

var (
	staff    = auth.Claims{UserID: "staff-1", Role: auth.RoleStaff}
	owner    = auth.Claims{UserID: "u1", Role: auth.RolePatient}
	stranger = auth.Claims{UserID: "u2", Role: auth.RolePatient}
	testNow  = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
)

func newTestService(gw Gateway) (*Service, *testRepo) {
	repo := newTestRepo()
	svc := NewService(repo, gw, fakePatients{
		"p1": {ID: "p1", UserID: "u1", FirstName: "Ana", LastName: "Santos"},
		"p2": {ID: "p2", UserID: "u2"},
	}, "PHP")
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func createUnpaid(t *testing.T, svc *Service) Payment {
	t.Helper()
	p, err := svc.CreateForVisit(context.Background(), VisitCharge{
		VisitID: "v1", PatientID: "p1", Description: "Cleaning", AmountCents: 150000, RecordedBy: "staff-1",
	})
	if err != nil {
		t.Fatalf("CreateForVisit: %v", err)
	}
	return p
}

func TestCreateForVisit_Idempotent(t *testing.T) {
	svc, repo := newTestService(nil)
	first := createUnpaid(t, svc)
	second := createUnpaid(t, svc)

	if first.ID != second.ID || len(repo.byID) != 1 {
		t.Fatalf("expected one payment per visit, got %d", len(repo.byID))
	}
	if first.Status != StatusUnpaid || first.Currency != "php" {
		t.Fatalf("unexpected %+v", first)
	}
}

func TestCreateForVisit_FreeServiceIsPaid(t *testing.T) {
	svc, _ := newTestService(nil)
	p, err := svc.CreateForVisit(context.Background(), VisitCharge{VisitID: "v9", PatientID: "p1"})
	if err != nil || p.Status != StatusPaid || p.PaidAt == nil {
		t.Fatalf("free visit: %+v %v", p, err)
	}
}

func TestRecordCash(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	p := createUnpaid(t, svc)

	got, err := svc.RecordCash(ctx, "staff-1", p.ID)
	if err != nil {
		t.Fatalf("RecordCash: %v", err)
	}
	if got.Status != StatusPaid || got.Method != MethodCash || got.PaidAt == nil {
		t.Fatalf("unexpected %+v", got)
	}
	if _, err := svc.RecordCash(ctx, "staff-1", p.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("second cash: err=%v", err)
	}
}

func TestChargeCard(t *testing.T) {
	cases := []struct {
		name   string
		status string
		want   Status
	}{
		{"successful", ChargeSuccessful, StatusPaid},
		{"failed", ChargeFailed, StatusFailed},
		{"pending", "pending", StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newFakeGateway(tc.status)
			svc, _ := newTestService(gw)
			p := createUnpaid(t, svc)

			got, err := svc.ChargeCard(context.Background(), owner, p.ID, "tokn_test")
			if err != nil {
				t.Fatalf("ChargeCard: %v", err)
			}
			if got.Status != tc.want || got.Method != MethodCard || got.ProviderRef == "" || got.Provider != "fake" {
				t.Fatalf("unexpected %+v", got)
			}
		})
	}
}

func TestChargeCard_Rules(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(nil)
	p := createUnpaid(t, svc)
	if _, err := svc.ChargeCard(ctx, owner, p.ID, "tokn"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("no gateway: err=%v", err)
	}

	gw := newFakeGateway(ChargeSuccessful)
	svc, repo := newTestService(gw)
	p = createUnpaid(t, svc)

	if _, err := svc.ChargeCard(ctx, stranger, p.ID, "tokn"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other patient: err=%v", err)
	}
	if _, err := svc.ChargeCard(ctx, owner, p.ID, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty token: err=%v", err)
	}

	gw.failNext = errors.New("card declined by network")
	if _, err := svc.ChargeCard(ctx, owner, p.ID, "tokn"); !errors.Is(err, ErrGateway) {
		t.Fatalf("gateway error: err=%v", err)
	}
	if repo.byID[p.ID].Status != StatusUnpaid {
		t.Fatalf("payment changed after gateway error: %s", repo.byID[p.ID].Status)
	}

	gw.failNext = nil
	if _, err := svc.ChargeCard(ctx, staff, p.ID, "tokn"); err != nil {
		t.Fatalf("staff charge: %v", err)
	}
	if _, err := svc.ChargeCard(ctx, owner, p.ID, "tokn"); !errors.Is(err, ErrBadState) {
		t.Fatalf("charge paid payment: err=%v", err)
	}
}

func TestReconcileCharge(t *testing.T) {
	gw := newFakeGateway("pending")
	svc, _ := newTestService(gw)
	ctx := context.Background()
	p := createUnpaid(t, svc)

	p, err := svc.ChargeCard(ctx, owner, p.ID, "tokn")
	if err != nil || p.Status != StatusPending {
		t.Fatalf("ChargeCard: %+v %v", p, err)
	}

	ch := gw.charges[p.ProviderRef]
	ch.Status = ChargeSuccessful
	gw.charges[p.ProviderRef] = ch

	got, err := svc.HandleEvent(ctx, "evnt_1")
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got.Status != StatusPaid || got.PaidAt == nil {
		t.Fatalf("unexpected %+v", got)
	}

	if _, err := svc.HandleEvent(ctx, "evnt_forged"); !errors.Is(err, ErrGateway) {
		t.Fatalf("forged event: err=%v", err)
	}
	if _, err := svc.ReconcileCharge(ctx, "chrg_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown charge: err=%v", err)
	}
}

func TestApplyRefund(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	p := createUnpaid(t, svc)

	if _, err := svc.ApplyRefund(ctx, p.ID, 100); !errors.Is(err, ErrBadState) {
		t.Fatalf("refund unpaid: err=%v", err)
	}
	if _, err := svc.RecordCash(ctx, "staff-1", p.ID); err != nil {
		t.Fatalf("RecordCash: %v", err)
	}

	got, err := svc.ApplyRefund(ctx, p.ID, 50000)
	if err != nil || got.Status != StatusPaid || got.RefundedCents != 50000 || got.Refundable() != 100000 {
		t.Fatalf("partial refund: %+v %v", got, err)
	}
	if _, err := svc.ApplyRefund(ctx, p.ID, 100001); !errors.Is(err, ErrOverRefund) {
		t.Fatalf("over refund: err=%v", err)
	}
	got, err = svc.ApplyRefund(ctx, p.ID, 100000)
	if err != nil || got.Status != StatusRefunded {
		t.Fatalf("full refund: %+v %v", got, err)
	}
}

func TestRefundCharge(t *testing.T) {
	gw := newFakeGateway(ChargeSuccessful)
	svc, _ := newTestService(gw)
	ctx := context.Background()
	p := createUnpaid(t, svc)

	if _, _, err := svc.RefundCharge(ctx, p.ID, 100); !errors.Is(err, ErrBadState) {
		t.Fatalf("refund without charge: err=%v", err)
	}
	if _, err := svc.ChargeCard(ctx, owner, p.ID, "tokn"); err != nil {
		t.Fatalf("ChargeCard: %v", err)
	}
	ref, got, err := svc.RefundCharge(ctx, p.ID, 150000)
	if err != nil {
		t.Fatalf("RefundCharge: %v", err)
	}
	if ref != "rfnd_1" || got.Status != StatusRefunded || len(gw.refunds) != 1 {
		t.Fatalf("unexpected ref=%s payment=%+v refunds=%v", ref, got, gw.refunds)
	}
}

func TestReceipt(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	p := createUnpaid(t, svc)

	if _, err := svc.Receipt(ctx, owner, p.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("receipt before payment: err=%v", err)
	}
	if _, err := svc.RecordCash(ctx, "staff-1", p.ID); err != nil {
		t.Fatalf("RecordCash: %v", err)
	}
	if _, err := svc.Receipt(ctx, stranger, p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger receipt: err=%v", err)
	}
	rc, err := svc.Receipt(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if rc.PatientName != "Ana Santos" || rc.AmountCents != 150000 || rc.Method != "cash" || rc.Reference == "" {
		t.Fatalf("unexpected %+v", rc)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(150005, "php"); got != "PHP 1500.05" {
		t.Fatalf("got %q", got)
	}
}
