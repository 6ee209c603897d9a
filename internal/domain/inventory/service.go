package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("sku already exists")
	ErrBadState          = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockChanged      = errors.New("stock changed, retry")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type ItemInput struct {
	SKU               string
	Name              string
	Unit              string
	LowStockThreshold int
}

func (s *Service) CreateItem(ctx context.Context, in ItemInput) (Item, error) {
	sku := strings.ToUpper(strings.TrimSpace(in.SKU))
	name := strings.TrimSpace(in.Name)
	if sku == "" || name == "" || in.LowStockThreshold < 0 {
		return Item{}, ErrInvalidInput
	}
	if _, err := s.repo.GetItemBySKU(ctx, sku); err == nil {
		return Item{}, ErrConflict
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "pc"
	}

	now := s.now()
	it := Item{
		ID:                uuid.NewString(),
		SKU:               sku,
		Name:              name,
		Unit:              unit,
		LowStockThreshold: in.LowStockThreshold,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

type ItemUpdate struct {
	Name              *string
	Unit              *string
	LowStockThreshold *int
	IsActive          *bool
}

func (s *Service) UpdateItem(ctx context.Context, id string, in ItemUpdate) (Item, error) {
	it, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Item{}, ErrInvalidInput
		}
		it.Name = name
	}
	if in.Unit != nil && strings.TrimSpace(*in.Unit) != "" {
		it.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.LowStockThreshold != nil {
		if *in.LowStockThreshold < 0 {
			return Item{}, ErrInvalidInput
		}
		it.LowStockThreshold = *in.LowStockThreshold
	}
	if in.IsActive != nil {
		it.IsActive = *in.IsActive
	}
	it.UpdatedAt = s.now()

	if err := s.repo.UpdateItem(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Item{}, ErrInvalidInput
	}
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, ErrNotFound
	}
	return it, nil
}

type ReceiveInput struct {
	ItemID    string
	LotNumber string
	Supplier  string
	CostCents int64
	Qty       int
	ExpiresAt *time.Time
	UserID    string
}

func (s *Service) Receive(ctx context.Context, in ReceiveInput) (Batch, error) {
	if in.Qty <= 0 || in.CostCents < 0 {
		return Batch{}, ErrInvalidInput
	}
	it, err := s.GetItem(ctx, in.ItemID)
	if err != nil {
		return Batch{}, err
	}
	if !it.IsActive {
		return Batch{}, ErrBadState
	}

	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		// no se recibe mercadería vencida
		return Batch{}, ErrInvalidInput
	}

	b := Batch{
		ID:          uuid.NewString(),
		ItemID:      it.ID,
		LotNumber:   strings.TrimSpace(in.LotNumber),
		Supplier:    strings.TrimSpace(in.Supplier),
		CostCents:   in.CostCents,
		QtyReceived: in.Qty,
		QtyOnHand:   in.Qty,
		ExpiresAt:   in.ExpiresAt,
		ReceivedAt:  now,
	}
	mv := Movement{
		ID:        uuid.NewString(),
		ItemID:    it.ID,
		BatchID:   b.ID,
		Type:      MovementReceive,
		Qty:       in.Qty,
		Reference: b.LotNumber,
		UserID:    strings.TrimSpace(in.UserID),
		CreatedAt: now,
	}
	if err := s.repo.CreateBatch(ctx, b, mv); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// Consume descuenta por FEFO todas las líneas o ninguna.
func (s *Service) Consume(ctx context.Context, lines []Line, reference, userID string) ([]Movement, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	// agrupamos por item manteniendo orden de llegada
	order := make([]string, 0, len(lines))
	wanted := map[string]int{}
	for _, l := range lines {
		id := strings.TrimSpace(l.ItemID)
		if id == "" || l.Qty <= 0 {
			return nil, ErrInvalidInput
		}
		if _, seen := wanted[id]; !seen {
			order = append(order, id)
		}
		wanted[id] += l.Qty
	}

	now := s.now()
	var draws []Draw
	for _, itemID := range order {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
		batches, err := s.repo.ListBatches(ctx, itemID)
		if err != nil {
			return nil, err
		}
		d, err := planConsumption(batches, wanted[itemID], now)
		if err != nil {
			return nil, err
		}
		draws = append(draws, d...)
	}

	movements := make([]Movement, 0, len(draws))
	for _, d := range draws {
		movements = append(movements, Movement{
			ID:        uuid.NewString(),
			ItemID:    d.ItemID,
			BatchID:   d.BatchID,
			Type:      MovementConsume,
			Qty:       -d.Qty,
			Reference: strings.TrimSpace(reference),
			UserID:    strings.TrimSpace(userID),
			CreatedAt: now,
		})
	}

	if err := s.repo.ApplyConsumption(ctx, draws, movements); err != nil {
		return nil, err
	}
	return movements, nil
}

// planConsumption: first-expired-first-out. Lotes vencidos o vacíos no cuentan;
// sin vencimiento van al final; empate por fecha de ingreso.
func planConsumption(batches []Batch, qty int, now time.Time) ([]Draw, error) {
	usable := make([]Batch, 0, len(batches))
	total := 0
	for _, b := range batches {
		if b.QtyOnHand <= 0 || b.Expired(now) {
			continue
		}
		usable = append(usable, b)
		total += b.QtyOnHand
	}
	if total < qty {
		return nil, ErrInsufficientStock
	}

	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		return a.ReceivedAt.Before(b.ReceivedAt)
	})

	out := make([]Draw, 0)
	left := qty
	for _, b := range usable {
		if left == 0 {
			break
		}
		take := min(b.QtyOnHand, left)
		out = append(out, Draw{ItemID: b.ItemID, BatchID: b.ID, Qty: take})
		left -= take
	}
	return out, nil
}

func (s *Service) Adjust(ctx context.Context, batchID string, delta int, reason, userID string) (Batch, error) {
	batchID = strings.TrimSpace(batchID)
	reason = strings.TrimSpace(reason)
	if batchID == "" || delta == 0 || reason == "" {
		return Batch{}, ErrInvalidInput
	}
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return Batch{}, ErrNotFound
	}
	if b.QtyOnHand+delta < 0 {
		return Batch{}, ErrInvalidInput
	}

	mv := Movement{
		ID:        uuid.NewString(),
		ItemID:    b.ItemID,
		BatchID:   b.ID,
		Type:      MovementAdjust,
		Qty:       delta,
		Reference: reason,
		UserID:    strings.TrimSpace(userID),
		CreatedAt: s.now(),
	}
	if err := s.repo.ApplyAdjustment(ctx, b.ID, delta, mv); err != nil {
		return Batch{}, err
	}
	b.QtyOnHand += delta
	return b, nil
}

func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	return s.repo.ListItems(ctx)
}

func (s *Service) Batches(ctx context.Context, itemID string) ([]Batch, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, itemID)
}

// Stock resume existencias por item (solo items activos).
func (s *Service) Stock(ctx context.Context) ([]StockLine, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatches(ctx, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	onHand := map[string]int{}
	expired := map[string]int{}
	for _, b := range batches {
		if b.Expired(now) {
			expired[b.ItemID] += b.QtyOnHand
			continue
		}
		onHand[b.ItemID] += b.QtyOnHand
	}

	out := make([]StockLine, 0, len(items))
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		qty := onHand[it.ID]
		out = append(out, StockLine{
			Item:       it,
			OnHand:     qty,
			ExpiredQty: expired[it.ID],
			Low:        qty <= it.LowStockThreshold,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.SKU < out[j].Item.SKU })
	return out, nil
}

// LowStockCount lo usa el reporte.
func (s *Service) LowStockCount(ctx context.Context) (int, error) {
	lines, err := s.Stock(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		if l.Low {
			n++
		}
	}
	return n, nil
}

// Expiring devuelve lotes con stock que vencen dentro de los próximos days días.
func (s *Service) Expiring(ctx context.Context, days int) ([]Batch, error) {
	if days <= 0 {
		return nil, ErrInvalidInput
	}
	batches, err := s.repo.ListBatches(ctx, "")
	if err != nil {
		return nil, err
	}
	now := s.now()
	limit := now.AddDate(0, 0, days)

	out := make([]Batch, 0)
	for _, b := range batches {
		if b.QtyOnHand <= 0 || b.ExpiresAt == nil {
			continue
		}
		if b.ExpiresAt.After(now) && !b.ExpiresAt.After(limit) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

func (s *Service) Movements(ctx context.Context, itemID string) ([]Movement, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, itemID)
}
