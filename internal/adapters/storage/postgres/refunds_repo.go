package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/refunds"
)

type RefundsRepo struct {
	db *sql.DB
}

func NewRefundsRepo(db *sql.DB) *RefundsRepo {
	return &RefundsRepo{db: db}
}

const refundColumns = `id, payment_id, patient_id, amount_cents, reason, status, reviewed_by, review_note,
	provider_ref, created_at, updated_at, processed_at`

// Create depende del índice parcial refund_requests_open_idx para rechazar
// una segunda solicitud abierta del mismo pago.
func (r *RefundsRepo) Create(ctx context.Context, rq refunds.Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refund_requests (`+refundColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		rq.ID, rq.PaymentID, rq.PatientID, rq.AmountCents, rq.Reason, string(rq.Status),
		rq.ReviewedBy, rq.ReviewNote, rq.ProviderRef, rq.CreatedAt, rq.UpdatedAt, toNullTime(rq.ProcessedAt),
	)
	return mapErr(err)
}

func (r *RefundsRepo) Update(ctx context.Context, rq refunds.Request) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET
			status = $2,
			reviewed_by = $3,
			review_note = $4,
			provider_ref = $5,
			updated_at = $6,
			processed_at = $7
		WHERE id = $1
	`, rq.ID, string(rq.Status), rq.ReviewedBy, rq.ReviewNote, rq.ProviderRef, rq.UpdatedAt, toNullTime(rq.ProcessedAt))
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *RefundsRepo) GetByID(ctx context.Context, id string) (refunds.Request, error) {
	return scanRefund(r.db.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE id = $1`, id))
}

func (r *RefundsRepo) ListByPayment(ctx context.Context, paymentID string) ([]refunds.Request, error) {
	return r.query(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE payment_id = $1 ORDER BY created_at DESC`, paymentID)
}

func (r *RefundsRepo) List(ctx context.Context, status refunds.Status, patientID string) ([]refunds.Request, error) {
	var a args
	if status != "" {
		a.add("status = ?", string(status))
	}
	if patientID != "" {
		a.add("patient_id = ?", patientID)
	}
	return r.query(ctx, `SELECT `+refundColumns+` FROM refund_requests`+a.clause()+` ORDER BY created_at DESC`, a.vals...)
}

func (r *RefundsRepo) query(ctx context.Context, q string, vals ...any) ([]refunds.Request, error) {
	rows, err := r.db.QueryContext(ctx, q, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]refunds.Request, 0)
	for rows.Next() {
		rq, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rq)
	}
	return out, rows.Err()
}

func scanRefund(s scanner) (refunds.Request, error) {
	var (
		rq        refunds.Request
		status    string
		processed sql.NullTime
	)
	err := s.Scan(&rq.ID, &rq.PaymentID, &rq.PatientID, &rq.AmountCents, &rq.Reason, &status,
		&rq.ReviewedBy, &rq.ReviewNote, &rq.ProviderRef, &rq.CreatedAt, &rq.UpdatedAt, &processed)
	if err != nil {
		return refunds.Request{}, mapErr(err)
	}
	rq.Status = refunds.Status(status)
	rq.ProcessedAt = fromNullTime(processed)
	return rq, nil
}
