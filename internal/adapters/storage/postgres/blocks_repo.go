package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/blocks"
)

type BlocksRepo struct {
	db *sql.DB
}

func NewBlocksRepo(db *sql.DB) *BlocksRepo {
	return &BlocksRepo{db: db}
}

const blockColumns = `id, type, patient_id, ip_rule, reason, status, created_by, created_at, lifted_by, lifted_at`

func (r *BlocksRepo) Create(ctx context.Context, b blocks.Block) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocks (`+blockColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		b.ID, string(b.Type), b.PatientID, b.IPRule, b.Reason, string(b.Status),
		b.CreatedBy, b.CreatedAt, b.LiftedBy, toNullTime(b.LiftedAt),
	)
	return mapErr(err)
}

func (r *BlocksRepo) Update(ctx context.Context, b blocks.Block) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blocks
		SET reason = $2, status = $3, lifted_by = $4, lifted_at = $5
		WHERE id = $1
	`, b.ID, b.Reason, string(b.Status), b.LiftedBy, toNullTime(b.LiftedAt))
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *BlocksRepo) GetByID(ctx context.Context, id string) (blocks.Block, error) {
	return scanBlock(r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id))
}

func (r *BlocksRepo) List(ctx context.Context, status blocks.Status) ([]blocks.Block, error) {
	var a args
	if status != "" {
		a.add("status = ?", string(status))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks`+a.clause()+` ORDER BY created_at`, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]blocks.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBlock(s scanner) (blocks.Block, error) {
	var (
		b        blocks.Block
		typ, st  string
		liftedAt sql.NullTime
	)
	err := s.Scan(&b.ID, &typ, &b.PatientID, &b.IPRule, &b.Reason, &st, &b.CreatedBy, &b.CreatedAt, &b.LiftedBy, &liftedAt)
	if err != nil {
		return blocks.Block{}, mapErr(err)
	}
	b.Type = blocks.Type(typ)
	b.Status = blocks.Status(st)
	b.LiftedAt = fromNullTime(liftedAt)
	return b, nil
}
