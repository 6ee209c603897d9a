package inventory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	items     map[string]Item
	batches   map[string]Batch
	movements []Movement
}

func newTestRepo() *testRepo {
	return &testRepo{items: map[string]Item{}, batches: map[string]Batch{}}
}

func (r *testRepo) CreateItem(_ context.Context, it Item) error { r.items[it.ID] = it; return nil }
func (r *testRepo) UpdateItem(_ context.Context, it Item) error { r.items[it.ID] = it; return nil }

func (r *testRepo) GetItem(_ context.Context, id string) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, errors.New("repo: not found")
	}
	return it, nil
}

func (r *testRepo) GetItemBySKU(_ context.Context, sku string) (Item, error) {
	for _, it := range r.items {
		if it.SKU == sku {
			return it, nil
		}
	}
	return Item{}, errors.New("repo: not found")
}

func (r *testRepo) ListItems(_ context.Context) ([]Item, error) {
	out := make([]Item, 0)
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, nil
}

func (r *testRepo) CreateBatch(_ context.Context, b Batch, mv Movement) error {
	r.batches[b.ID] = b
	r.movements = append(r.movements, mv)
	return nil
}

func (r *testRepo) GetBatch(_ context.Context, id string) (Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return Batch{}, errors.New("repo: not found")
	}
	return b, nil
}

func (r *testRepo) ListBatches(_ context.Context, itemID string) ([]Batch, error) {
	out := make([]Batch, 0)
	for _, b := range r.batches {
		if itemID == "" || b.ItemID == itemID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *testRepo) ApplyConsumption(_ context.Context, draws []Draw, movements []Movement) error {
	for _, d := range draws {
		if r.batches[d.BatchID].QtyOnHand < d.Qty {
			return ErrStockChanged
		}
	}
	for _, d := range draws {
		b := r.batches[d.BatchID]
		b.QtyOnHand -= d.Qty
		r.batches[d.BatchID] = b
	}
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *testRepo) ApplyAdjustment(_ context.Context, batchID string, delta int, mv Movement) error {
	b := r.batches[batchID]
	if b.QtyOnHand+delta < 0 {
		return ErrStockChanged
	}
	b.QtyOnHand += delta
	r.batches[batchID] = b
	r.movements = append(r.movements, mv)
	return nil
}

func (r *testRepo) ListMovements(_ context.Context, itemID string) ([]Movement, error) {
	out := make([]Movement, 0)
	for _, m := range r.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func ptr(t time.Time) *time.Time { return &t }

func TestPlanConsumption_FEFO(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	batches := []Batch{
		{ID: "no-exp", ItemID: "i", QtyOnHand: 10, ReceivedAt: now.AddDate(0, -3, 0)},
		{ID: "late", ItemID: "i", QtyOnHand: 5, ExpiresAt: ptr(now.AddDate(0, 6, 0)), ReceivedAt: now.AddDate(0, -2, 0)},
		{ID: "soon", ItemID: "i", QtyOnHand: 3, ExpiresAt: ptr(now.AddDate(0, 1, 0)), ReceivedAt: now.AddDate(0, -1, 0)},
		{ID: "expired", ItemID: "i", QtyOnHand: 50, ExpiresAt: ptr(now.AddDate(0, 0, -1)), ReceivedAt: now.AddDate(-1, 0, 0)},
		{ID: "empty", ItemID: "i", QtyOnHand: 0, ExpiresAt: ptr(now.AddDate(0, 0, 1)), ReceivedAt: now},
	}

	draws, err := planConsumption(batches, 10, now)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	want := []Draw{{"i", "soon", 3}, {"i", "late", 5}, {"i", "no-exp", 2}}
	if len(draws) != len(want) {
		t.Fatalf("draws=%v want %v", draws, want)
	}
	for i := range want {
		if draws[i] != want[i] {
			t.Fatalf("draw[%d]=%v want %v", i, draws[i], want[i])
		}
	}

	if _, err := planConsumption(batches, 19, now); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock (expired stock must not count), got %v", err)
	}
}

func TestPlanConsumption_TieBreakByReceivedAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	exp := ptr(now.AddDate(0, 2, 0))
	batches := []Batch{
		{ID: "newer", ItemID: "i", QtyOnHand: 5, ExpiresAt: exp, ReceivedAt: now.AddDate(0, 0, -1)},
		{ID: "older", ItemID: "i", QtyOnHand: 5, ExpiresAt: exp, ReceivedAt: now.AddDate(0, 0, -10)},
	}
	draws, err := planConsumption(batches, 4, now)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	if len(draws) != 1 || draws[0].BatchID != "older" {
		t.Fatalf("expected draw from older batch, got %v", draws)
	}
}

func TestService_ConsumeAllOrNothing(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)
	ctx := context.Background()

	gloves, err := svc.CreateItem(ctx, ItemInput{SKU: "glv-m", Name: "Gloves M", LowStockThreshold: 5})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	anest, err := svc.CreateItem(ctx, ItemInput{SKU: "lido", Name: "Lidocaine", Unit: "ml"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := svc.CreateItem(ctx, ItemInput{SKU: "GLV-M", Name: "dup"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := svc.Receive(ctx, ReceiveInput{ItemID: gloves.ID, LotNumber: "L1", Qty: 20}); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := svc.Receive(ctx, ReceiveInput{ItemID: anest.ID, LotNumber: "A1", Qty: 2, ExpiresAt: ptr(time.Now().AddDate(0, 1, 0))}); err != nil {
		t.Fatalf("receive: %v", err)
	}

	_, err = svc.Consume(ctx, []Line{{ItemID: gloves.ID, Qty: 2}, {ItemID: anest.ID, Qty: 5}}, "visit-1", "staff-1")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	stock, _ := svc.Stock(ctx)
	for _, l := range stock {
		if l.Item.ID == gloves.ID && l.OnHand != 20 {
			t.Fatalf("gloves touched on failed consume: %d", l.OnHand)
		}
	}

	mvs, err := svc.Consume(ctx, []Line{{ItemID: gloves.ID, Qty: 2}, {ItemID: gloves.ID, Qty: 1}, {ItemID: anest.ID, Qty: 2}}, "visit-1", "staff-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(mvs) != 2 || mvs[0].Qty != -3 || mvs[0].Type != MovementConsume {
		t.Fatalf("unexpected movements: %#v", mvs)
	}

	stock, _ = svc.Stock(ctx)
	for _, l := range stock {
		switch l.Item.ID {
		case gloves.ID:
			if l.OnHand != 17 || l.Low {
				t.Fatalf("gloves stock %+v", l)
			}
		case anest.ID:
			if l.OnHand != 0 || !l.Low {
				t.Fatalf("lidocaine stock %+v", l)
			}
		}
	}
	if n, _ := svc.LowStockCount(ctx); n != 1 {
		t.Fatalf("LowStockCount=%d want 1", n)
	}
}

func TestService_Receive_RejectsExpired(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, ItemInput{SKU: "x", Name: "X"})

	if _, err := svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 1, ExpiresAt: ptr(time.Now().Add(-time.Hour))}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 0}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for qty 0, got %v", err)
	}
}

func TestService_Adjust(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, ItemInput{SKU: "bur", Name: "Bur"})
	b, _ := svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 4})

	if _, err := svc.Adjust(ctx, b.ID, -5, "broken", "s1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Adjust(ctx, b.ID, -1, "", "s1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("reason required, got %v", err)
	}
	got, err := svc.Adjust(ctx, b.ID, -1, "broken", "s1")
	if err != nil || got.QtyOnHand != 3 {
		t.Fatalf("adjust: %v %+v", err, got)
	}

	mvs, _ := svc.Movements(ctx, it.ID)
	if len(mvs) != 2 || mvs[1].Type != MovementAdjust || mvs[1].Qty != -1 {
		t.Fatalf("unexpected movements: %#v", mvs)
	}
}

func TestService_Expiring(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	it, _ := svc.CreateItem(ctx, ItemInput{SKU: "c", Name: "Composite"})
	in10, _ := svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 1, ExpiresAt: ptr(now.AddDate(0, 0, 10))})
	_, _ = svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 1, ExpiresAt: ptr(now.AddDate(0, 0, 60))})
	_, _ = svc.Receive(ctx, ReceiveInput{ItemID: it.ID, Qty: 1})

	got, err := svc.Expiring(ctx, 30)
	if err != nil {
		t.Fatalf("Expiring: %v", err)
	}
	if len(got) != 1 || got[0].ID != in10.ID {
		t.Fatalf("unexpected expiring batches: %#v", got)
	}
}
