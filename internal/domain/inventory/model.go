package inventory

import "time"

type Item struct {
	ID   string
	SKU  string
	Name string
	Unit string // "pc", "box", "ml"

	LowStockThreshold int
	IsActive          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Batch es un lote recibido; el stock real vive en QtyOnHand de cada lote.
type Batch struct {
	ID        string
	ItemID    string
	LotNumber string
	Supplier  string
	CostCents int64

	QtyReceived int
	QtyOnHand   int

	ExpiresAt  *time.Time
	ReceivedAt time.Time
}

func (b Batch) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

type MovementType string

const (
	MovementReceive MovementType = "receive"
	MovementConsume MovementType = "consume"
	MovementAdjust  MovementType = "adjust"
)

// Movement es el kardex: Qty positivo entra, negativo sale.
type Movement struct {
	ID        string
	ItemID    string
	BatchID   string
	Type      MovementType
	Qty       int
	Reference string // visit id, motivo de ajuste, etc.
	UserID    string
	CreatedAt time.Time
}

// Draw es cuánto se descuenta de un lote concreto.
type Draw struct {
	ItemID  string
	BatchID string
	Qty     int
}

// Line es un pedido de consumo por item.
type Line struct {
	ItemID string
	Qty    int
}

type StockLine struct {
	Item       Item
	OnHand     int // sólo lotes vigentes
	ExpiredQty int
	Low        bool
}
