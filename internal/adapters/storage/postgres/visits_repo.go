package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"dental-clinic/internal/domain/visits"
)

type VisitsRepo struct {
	db *sql.DB
}

func NewVisitsRepo(db *sql.DB) *VisitsRepo {
	return &VisitsRepo{db: db}
}

const visitColumns = `id, patient_id, appointment_id, service_id, status, started_at, ended_at, notes,
	teeth_treated, items, started_by, completed_by, payment_id, created_at, updated_at`

// consumedItem es la forma JSONB de visits.ConsumedItem.
type consumedItem struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

func encodeVisitJSON(v visits.Visit) (teeth, items []byte, err error) {
	t := v.TeethTreated
	if t == nil {
		t = []string{}
	}
	if teeth, err = json.Marshal(t); err != nil {
		return nil, nil, err
	}
	ci := make([]consumedItem, 0, len(v.Items))
	for _, it := range v.Items {
		ci = append(ci, consumedItem{ItemID: it.ItemID, Qty: it.Qty})
	}
	items, err = json.Marshal(ci)
	return teeth, items, err
}

func (r *VisitsRepo) Create(ctx context.Context, v visits.Visit) error {
	teeth, items, err := encodeVisitJSON(v)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		v.ID, v.PatientID, v.AppointmentID, v.ServiceID, string(v.Status), v.StartedAt, toNullTime(v.EndedAt),
		v.Notes, string(teeth), string(items), v.StartedBy, v.CompletedBy, v.PaymentID, v.CreatedAt, v.UpdatedAt,
	)
	return mapErr(err)
}

func (r *VisitsRepo) Update(ctx context.Context, v visits.Visit) error {
	teeth, items, err := encodeVisitJSON(v)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE visits
		SET
			status = $2,
			ended_at = $3,
			notes = $4,
			teeth_treated = $5,
			items = $6,
			completed_by = $7,
			payment_id = $8,
			updated_at = $9
		WHERE id = $1
	`,
		v.ID, string(v.Status), toNullTime(v.EndedAt), v.Notes, string(teeth), string(items),
		v.CompletedBy, v.PaymentID, v.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *VisitsRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	return scanVisit(r.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
}

func (r *VisitsRepo) GetByAppointment(ctx context.Context, appointmentID string) (visits.Visit, error) {
	if appointmentID == "" {
		return visits.Visit{}, ErrNotFound
	}
	return scanVisit(r.db.QueryRowContext(ctx, `
		SELECT `+visitColumns+` FROM visits
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID))
}

func (r *VisitsRepo) List(ctx context.Context, f visits.Filter) ([]visits.Visit, error) {
	var a args
	if f.PatientID != "" {
		a.add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		a.add("status = ?", string(f.Status))
	}
	if f.From != nil {
		a.add("started_at >= ?", *f.From)
	}
	if f.To != nil {
		a.add("started_at < ?", *f.To)
	}
	q := `SELECT ` + visitColumns + ` FROM visits` + a.clause() + ` ORDER BY started_at DESC`
	q += a.limit(f.Limit)

	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]visits.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVisit(s scanner) (visits.Visit, error) {
	var (
		v            visits.Visit
		status       string
		endedAt      sql.NullTime
		teeth, items []byte
	)
	err := s.Scan(&v.ID, &v.PatientID, &v.AppointmentID, &v.ServiceID, &status, &v.StartedAt, &endedAt,
		&v.Notes, &teeth, &items, &v.StartedBy, &v.CompletedBy, &v.PaymentID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return visits.Visit{}, mapErr(err)
	}
	v.Status = visits.Status(status)
	v.EndedAt = fromNullTime(endedAt)

	if err := json.Unmarshal(teeth, &v.TeethTreated); err != nil {
		return visits.Visit{}, err
	}
	var ci []consumedItem
	if err := json.Unmarshal(items, &ci); err != nil {
		return visits.Visit{}, err
	}
	for _, it := range ci {
		v.Items = append(v.Items, visits.ConsumedItem{ItemID: it.ItemID, Qty: it.Qty})
	}
	return v, nil
}
