package omisegw

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"dental-clinic/internal/domain/payments"
)

type fakeDoer struct {
	ops    []interface{}
	charge omise.Charge
	event  string // JSON del evento
	err    error
}

func (f *fakeDoer) Do(result interface{}, op interface{}) error {
	f.ops = append(f.ops, op)
	if f.err != nil {
		return f.err
	}
	switch r := result.(type) {
	case *omise.Charge:
		*r = f.charge
	case *omise.Refund:
		r.ID = "rfnd_1"
	case *omise.Event:
		return json.Unmarshal([]byte(f.event), r)
	}
	return nil
}

func TestChargeMapsStatusAndFailure(t *testing.T) {
	msg := "insufficient funds"
	f := &fakeDoer{}
	f.charge.ID = "chrg_1"
	f.charge.Status = omise.ChargeStatus("failed")
	f.charge.Amount = 150000
	f.charge.Currency = "php"
	f.charge.FailureMessage = &msg

	g := NewWithClient(f)
	ch, err := g.Charge(context.Background(), payments.ChargeRequest{AmountCents: 150000, Currency: "PHP", CardToken: "tokn_1"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ch.ID != "chrg_1" || ch.Status != payments.ChargeFailed || ch.FailureMessage != msg {
		t.Fatalf("unexpected charge %+v", ch)
	}
	op, ok := f.ops[0].(*operations.CreateCharge)
	if !ok || op.Currency != "php" || op.Card != "tokn_1" {
		t.Fatalf("unexpected op %#v", f.ops[0])
	}
}

func TestRefundReturnsID(t *testing.T) {
	g := NewWithClient(&fakeDoer{})
	id, err := g.Refund(context.Background(), "chrg_1", 500)
	if err != nil || id != "rfnd_1" {
		t.Fatalf("refund: %q %v", id, err)
	}
}

func TestEventCharge(t *testing.T) {
	f := &fakeDoer{}
	f.event = `{"object":"event","id":"evnt_1","key":"charge.complete","data":{"object":"charge","id":"chrg_9"}}`

	g := NewWithClient(f)
	id, err := g.EventCharge(context.Background(), "evnt_1")
	if err != nil || id != "chrg_9" {
		t.Fatalf("event: %q %v", id, err)
	}

	f.event = `{"object":"event","id":"evnt_2","key":"customer.create","data":{"object":"customer","id":"cust_1"}}`
	id, err = g.EventCharge(context.Background(), "evnt_2")
	if err != nil || id != "" {
		t.Fatalf("non-charge event: %q %v", id, err)
	}
}

func TestGatewayErrorsPropagate(t *testing.T) {
	g := NewWithClient(&fakeDoer{err: errors.New("down")})
	if _, err := g.GetCharge(context.Background(), "chrg_1"); err == nil {
		t.Fatalf("expected error")
	}
}
