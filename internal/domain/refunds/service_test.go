package refunds

import (
	"context"
	"errors"
	"testing"
	"time"

	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/payments"
)

type testRepo struct {
	byID map[string]Request
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Request{}} }

func (r *testRepo) Create(_ context.Context, rq Request) error { r.byID[rq.ID] = rq; return nil }
func (r *testRepo) Update(_ context.Context, rq Request) error { r.byID[rq.ID] = rq; return nil }

func (r *testRepo) GetByID(_ context.Context, id string) (Request, error) {
	rq, ok := r.byID[id]
	if !ok {
		return Request{}, errors.New("repo: not found")
	}
	return rq, nil
}

func (r *testRepo) ListByPayment(_ context.Context, paymentID string) ([]Request, error) {
	out := []Request{}
	for _, rq := range r.byID {
		if rq.PaymentID == paymentID {
			out = append(out, rq)
		}
	}
	return out, nil
}

func (r *testRepo) List(_ context.Context, status Status, patientID string) ([]Request, error) {
	out := []Request{}
	for _, rq := range r.byID {
		if status != "" && rq.Status != status {
			continue
		}
		if patientID != "" && rq.PatientID != patientID {
			continue
		}
		out = append(out, rq)
	}
	return out, nil
}

type fakePayments struct {
	byID    map[string]payments.Payment
	gateway []int64
}

func (f *fakePayments) Get(_ context.Context, id string) (payments.Payment, error) {
	p, ok := f.byID[id]
	if !ok {
		return payments.Payment{}, payments.ErrNotFound
	}
	return p, nil
}

func (f *fakePayments) ApplyRefund(_ context.Context, id string, cents int64) (payments.Payment, error) {
	p := f.byID[id]
	if cents > p.Refundable() {
		return payments.Payment{}, payments.ErrOverRefund
	}
	p.RefundedCents += cents
	if p.RefundedCents == p.AmountCents {
		p.Status = payments.StatusRefunded
	}
	f.byID[id] = p
	return p, nil
}

func (f *fakePayments) RefundCharge(ctx context.Context, id string, cents int64) (string, payments.Payment, error) {
	f.gateway = append(f.gateway, cents)
	p, err := f.ApplyRefund(ctx, id, cents)
	return "rfnd_1", p, err
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

func newTestService() (*Service, *testRepo, *fakePayments) {
	repo := newTestRepo()
	pay := &fakePayments{byID: map[string]payments.Payment{
		"cash-paid": {ID: "cash-paid", PatientID: "p1", AmountCents: 100000, Method: payments.MethodCash, Status: payments.StatusPaid},
		"card-paid": {ID: "card-paid", PatientID: "p1", AmountCents: 80000, Method: payments.MethodCard, ProviderRef: "chrg_1", Status: payments.StatusPaid},
		"unpaid":    {ID: "unpaid", PatientID: "p1", AmountCents: 50000, Status: payments.StatusUnpaid},
	}}
	svc := NewService(repo, pay, fakePatients{"p1": {ID: "p1", UserID: "u1"}}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return svc, repo, pay
}

func TestRequest_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		in   RequestInput
		want error
	}{
		{"no reason", RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100}, ErrInvalidInput},
		{"zero amount", RequestInput{PatientID: "p1", PaymentID: "cash-paid", Reason: "x"}, ErrInvalidInput},
		{"over amount", RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100001, Reason: "x"}, ErrInvalidInput},
		{"other patient", RequestInput{PatientID: "p2", PaymentID: "cash-paid", AmountCents: 100, Reason: "x"}, ErrForbidden},
		{"unpaid", RequestInput{PatientID: "p1", PaymentID: "unpaid", AmountCents: 100, Reason: "x"}, ErrNotRefundable},
		{"missing payment", RequestInput{PatientID: "p1", PaymentID: "nope", AmountCents: 100, Reason: "x"}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Request(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestRequest_OneOpenPerPayment(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 20000, Reason: "overcharged"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100, Reason: "again"}); !errors.Is(err, ErrOpenRequest) {
		t.Fatalf("second open request: err=%v", err)
	}
	if _, err := svc.Reject(ctx, "admin-1", first.ID, "not eligible"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100, Reason: "again"}); err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
}

func TestApprove_Card(t *testing.T) {
	svc, _, pay := newTestService()
	ctx := context.Background()

	rq, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "card-paid", AmountCents: 80000, Reason: "cancelled treatment"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, err := svc.Approve(ctx, "admin-1", rq.ID, "ok")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != StatusProcessed || got.ProviderRef != "rfnd_1" || got.ProcessedAt == nil {
		t.Fatalf("unexpected %+v", got)
	}
	if len(pay.gateway) != 1 || pay.byID["card-paid"].Status != payments.StatusRefunded {
		t.Fatalf("gateway=%v payment=%+v", pay.gateway, pay.byID["card-paid"])
	}
	if _, err := svc.Approve(ctx, "admin-1", rq.ID, ""); !errors.Is(err, ErrBadState) {
		t.Fatalf("approve twice: err=%v", err)
	}
}

func TestApprove_CashNeedsProcessedStep(t *testing.T) {
	svc, _, pay := newTestService()
	ctx := context.Background()

	rq, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 30000, Reason: "partial"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := svc.MarkProcessed(ctx, "admin-1", rq.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("processed before approval: err=%v", err)
	}

	got, err := svc.Approve(ctx, "admin-1", rq.ID, "")
	if err != nil || got.Status != StatusApproved {
		t.Fatalf("Approve: %+v %v", got, err)
	}
	if pay.byID["cash-paid"].RefundedCents != 0 || len(pay.gateway) != 0 {
		t.Fatalf("cash approval must not move money yet: %+v", pay.byID["cash-paid"])
	}

	got, err = svc.MarkProcessed(ctx, "admin-1", rq.ID)
	if err != nil || got.Status != StatusProcessed {
		t.Fatalf("MarkProcessed: %+v %v", got, err)
	}
	if pay.byID["cash-paid"].RefundedCents != 30000 {
		t.Fatalf("refunded=%d", pay.byID["cash-paid"].RefundedCents)
	}
}

func TestReject_RequiresNote(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	rq, _ := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100, Reason: "x"})

	if _, err := svc.Reject(ctx, "admin-1", rq.ID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v", err)
	}
}

func TestListByPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Request(ctx, RequestInput{PatientID: "p1", PaymentID: "cash-paid", AmountCents: 100, Reason: "x"}); err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, err := svc.ListByPatient(ctx, "p1")
	if err != nil || len(got) != 1 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if _, err := svc.List(ctx, "lost"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: err=%v", err)
	}
}
