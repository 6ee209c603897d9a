package omisegw

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"dental-clinic/internal/domain/payments"
)

// Doer es el subconjunto de *omise.Client que usa el gateway.
type Doer interface {
	Do(result interface{}, op interface{}) error
}

// Gateway implementa payments.Gateway sobre la API de Omise.
type Gateway struct {
	client Doer
}

func New(publicKey, secretKey string) (*Gateway, error) {
	if publicKey == "" || secretKey == "" {
		return nil, errors.New("omise: missing keys")
	}
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return &Gateway{client: c}, nil
}

func NewWithClient(c Doer) *Gateway {
	return &Gateway{client: c}
}

func (g *Gateway) Name() string { return "omise" }

func (g *Gateway) Charge(ctx context.Context, req payments.ChargeRequest) (payments.Charge, error) {
	ch := &omise.Charge{}
	err := g.client.Do(ch, &operations.CreateCharge{
		Amount:   req.AmountCents,
		Currency: strings.ToLower(req.Currency),
		Card:     req.CardToken,
		Metadata: req.Metadata,
	})
	if err != nil {
		return payments.Charge{}, err
	}
	return toCharge(ch), nil
}

func (g *Gateway) GetCharge(ctx context.Context, chargeID string) (payments.Charge, error) {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: chargeID}); err != nil {
		return payments.Charge{}, err
	}
	return toCharge(ch), nil
}

func (g *Gateway) Refund(ctx context.Context, chargeID string, amountCents int64) (string, error) {
	rf := &omise.Refund{}
	if err := g.client.Do(rf, &operations.CreateRefund{ChargeID: chargeID, Amount: amountCents}); err != nil {
		return "", err
	}
	return rf.ID, nil
}

// EventCharge vuelve a pedir el evento a Omise (no confiamos en el body del webhook).
// Eventos que no son charge.* devuelven "".
func (g *Gateway) EventCharge(ctx context.Context, eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("omise: empty event id")
	}
	ev := &omise.Event{}
	if err := g.client.Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return "", err
	}
	if !strings.HasPrefix(ev.Key, "charge.") {
		return "", nil
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return "", err
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return "", err
	}
	return ch.ID, nil
}

func toCharge(ch *omise.Charge) payments.Charge {
	out := payments.Charge{
		ID:          ch.ID,
		Status:      string(ch.Status),
		AmountCents: ch.Amount,
		Currency:    ch.Currency,
	}
	if ch.FailureMessage != nil {
		out.FailureMessage = *ch.FailureMessage
	}
	return out
}
