package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/inventory"
)

type InventoryRepo struct {
	db *sql.DB
}

func NewInventoryRepo(db *sql.DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

const (
	itemColumns  = `id, sku, name, unit, low_stock_threshold, is_active, created_at, updated_at`
	batchColumns = `id, item_id, lot_number, supplier, cost_cents, qty_received, qty_on_hand, expires_at, received_at`
)

func (r *InventoryRepo) CreateItem(ctx context.Context, it inventory.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, it.ID, it.SKU, it.Name, it.Unit, it.LowStockThreshold, it.IsActive, it.CreatedAt, it.UpdatedAt)
	return mapErr(err)
}

func (r *InventoryRepo) UpdateItem(ctx context.Context, it inventory.Item) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = $2, unit = $3, low_stock_threshold = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`, it.ID, it.Name, it.Unit, it.LowStockThreshold, it.IsActive, it.UpdatedAt)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *InventoryRepo) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
}

func (r *InventoryRepo) GetItemBySKU(ctx context.Context, sku string) (inventory.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE lower(sku) = lower($1)`, sku))
}

func (r *InventoryRepo) ListItems(ctx context.Context) ([]inventory.Item, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]inventory.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) CreateBatch(ctx context.Context, b inventory.Batch, mv inventory.Movement) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_batches (`+batchColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, b.ID, b.ItemID, b.LotNumber, b.Supplier, b.CostCents, b.QtyReceived, b.QtyOnHand,
			toNullTime(b.ExpiresAt), b.ReceivedAt)
		if err != nil {
			return mapErr(err)
		}
		return insertMovement(ctx, tx, mv)
	})
}

func (r *InventoryRepo) GetBatch(ctx context.Context, id string) (inventory.Batch, error) {
	return scanBatch(r.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1`, id))
}

func (r *InventoryRepo) ListBatches(ctx context.Context, itemID string) ([]inventory.Batch, error) {
	var a args
	if itemID != "" {
		a.add("item_id = ?", itemID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM inventory_batches`+a.clause()+` ORDER BY received_at`, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]inventory.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ApplyConsumption descuenta cada draw con un UPDATE condicionado; si alguno
// no alcanza se revierte todo.
func (r *InventoryRepo) ApplyConsumption(ctx context.Context, draws []inventory.Draw, movements []inventory.Movement) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, d := range draws {
			res, err := tx.ExecContext(ctx, `
				UPDATE inventory_batches
				SET qty_on_hand = qty_on_hand - $2
				WHERE id = $1 AND qty_on_hand >= $2
			`, d.BatchID, d.Qty)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return inventory.ErrStockChanged
			}
		}
		for _, mv := range movements {
			if err := insertMovement(ctx, tx, mv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *InventoryRepo) ApplyAdjustment(ctx context.Context, batchID string, delta int, mv inventory.Movement) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var onHand int
		err := tx.QueryRowContext(ctx, `SELECT qty_on_hand FROM inventory_batches WHERE id = $1 FOR UPDATE`, batchID).Scan(&onHand)
		if err != nil {
			return mapErr(err)
		}
		if onHand+delta < 0 {
			return inventory.ErrStockChanged
		}
		if _, err := tx.ExecContext(ctx, `UPDATE inventory_batches SET qty_on_hand = qty_on_hand + $2 WHERE id = $1`, batchID, delta); err != nil {
			return err
		}
		return insertMovement(ctx, tx, mv)
	})
}

func (r *InventoryRepo) ListMovements(ctx context.Context, itemID string) ([]inventory.Movement, error) {
	var a args
	if itemID != "" {
		a.add("item_id = ?", itemID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, batch_id, type, qty, reference, user_id, created_at
		FROM inventory_movements`+a.clause()+` ORDER BY created_at`, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]inventory.Movement, 0)
	for rows.Next() {
		var (
			mv  inventory.Movement
			typ string
		)
		if err := rows.Scan(&mv.ID, &mv.ItemID, &mv.BatchID, &typ, &mv.Qty, &mv.Reference, &mv.UserID, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.Type = inventory.MovementType(typ)
		out = append(out, mv)
	}
	return out, rows.Err()
}

func insertMovement(ctx context.Context, tx *sql.Tx, mv inventory.Movement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_movements (id, item_id, batch_id, type, qty, reference, user_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, mv.ID, mv.ItemID, mv.BatchID, string(mv.Type), mv.Qty, mv.Reference, mv.UserID, mv.CreatedAt)
	return mapErr(err)
}

func scanItem(s scanner) (inventory.Item, error) {
	var it inventory.Item
	err := s.Scan(&it.ID, &it.SKU, &it.Name, &it.Unit, &it.LowStockThreshold, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return inventory.Item{}, mapErr(err)
	}
	return it, nil
}

func scanBatch(s scanner) (inventory.Batch, error) {
	var (
		b       inventory.Batch
		expires sql.NullTime
	)
	err := s.Scan(&b.ID, &b.ItemID, &b.LotNumber, &b.Supplier, &b.CostCents, &b.QtyReceived, &b.QtyOnHand, &expires, &b.ReceivedAt)
	if err != nil {
		return inventory.Batch{}, mapErr(err)
	}
	b.ExpiresAt = fromNullTime(expires)
	return b, nil
}
