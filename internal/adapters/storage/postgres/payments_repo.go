package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/payments"
)

type PaymentsRepo struct {
	db *sql.DB
}

func NewPaymentsRepo(db *sql.DB) *PaymentsRepo {
	return &PaymentsRepo{db: db}
}

const paymentColumns = `id, patient_id, visit_id, appointment_id, description, amount_cents, refunded_cents,
	currency, method, status, provider, provider_ref, failure_msg, paid_at, recorded_by, created_at, updated_at`

func (r *PaymentsRepo) Create(ctx context.Context, p payments.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		p.ID, p.PatientID, toNullString(p.VisitID), p.AppointmentID, p.Description, p.AmountCents, p.RefundedCents,
		p.Currency, string(p.Method), string(p.Status), p.Provider, p.ProviderRef, p.FailureMsg,
		toNullTime(p.PaidAt), p.RecordedBy, p.CreatedAt, p.UpdatedAt,
	)
	return mapErr(err)
}

func (r *PaymentsRepo) Update(ctx context.Context, p payments.Payment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET
			refunded_cents = $2,
			method = $3,
			status = $4,
			provider = $5,
			provider_ref = $6,
			failure_msg = $7,
			paid_at = $8,
			recorded_by = $9,
			updated_at = $10
		WHERE id = $1
	`,
		p.ID, p.RefundedCents, string(p.Method), string(p.Status), p.Provider, p.ProviderRef,
		p.FailureMsg, toNullTime(p.PaidAt), p.RecordedBy, p.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *PaymentsRepo) GetByID(ctx context.Context, id string) (payments.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *PaymentsRepo) GetByVisit(ctx context.Context, visitID string) (payments.Payment, error) {
	if visitID == "" {
		return payments.Payment{}, ErrNotFound
	}
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE visit_id = $1`, visitID))
}

func (r *PaymentsRepo) GetByProviderRef(ctx context.Context, ref string) (payments.Payment, error) {
	if ref == "" {
		return payments.Payment{}, ErrNotFound
	}
	return scanPayment(r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE provider_ref = $1 LIMIT 1
	`, ref))
}

func (r *PaymentsRepo) List(ctx context.Context, f payments.Filter) ([]payments.Payment, error) {
	var a args
	if f.PatientID != "" {
		a.add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		a.add("status = ?", string(f.Status))
	}
	if f.From != nil {
		a.add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		a.add("created_at < ?", *f.To)
	}
	q := `SELECT ` + paymentColumns + ` FROM payments` + a.clause() + ` ORDER BY created_at DESC`
	q += a.limit(f.Limit)

	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]payments.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(s scanner) (payments.Payment, error) {
	var (
		p              payments.Payment
		visitID        sql.NullString
		method, status string
		paidAt         sql.NullTime
	)
	err := s.Scan(&p.ID, &p.PatientID, &visitID, &p.AppointmentID, &p.Description, &p.AmountCents, &p.RefundedCents,
		&p.Currency, &method, &status, &p.Provider, &p.ProviderRef, &p.FailureMsg, &paidAt, &p.RecordedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return payments.Payment{}, mapErr(err)
	}
	p.VisitID = visitID.String
	p.Method = payments.Method(method)
	p.Status = payments.Status(status)
	p.PaidAt = fromNullTime(paidAt)
	return p, nil
}
