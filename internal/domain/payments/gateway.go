package payments

import "context"

type ChargeRequest struct {
	AmountCents int64
	Currency    string
	CardToken   string
	Metadata    map[string]any
}

// Gateway abstrae el procesador de tarjetas (omise en producción).
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
	GetCharge(ctx context.Context, chargeID string) (Charge, error)
	Refund(ctx context.Context, chargeID string, amountCents int64) (string, error)
	// EventCharge confirma un evento de webhook con el proveedor y devuelve el cargo asociado.
	EventCharge(ctx context.Context, eventID string) (string, error)
}
