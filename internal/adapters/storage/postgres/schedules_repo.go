package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/schedules"
)

type SchedulesRepo struct {
	db *sql.DB
}

func NewSchedulesRepo(db *sql.DB) *SchedulesRepo {
	return &SchedulesRepo{db: db}
}

func (r *SchedulesRepo) CreateDentist(ctx context.Context, d schedules.Dentist) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dentists (id, code, name, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, d.ID, d.Code, d.Name, string(d.Status), d.CreatedAt, d.UpdatedAt)
	return mapErr(err)
}

func (r *SchedulesRepo) UpdateDentist(ctx context.Context, d schedules.Dentist) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dentists SET code = $2, name = $3, status = $4, updated_at = $5 WHERE id = $1
	`, d.ID, d.Code, d.Name, string(d.Status), d.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *SchedulesRepo) GetDentist(ctx context.Context, id string) (schedules.Dentist, error) {
	var (
		d  schedules.Dentist
		st string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, status, created_at, updated_at FROM dentists WHERE id = $1
	`, id).Scan(&d.ID, &d.Code, &d.Name, &st, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return schedules.Dentist{}, mapErr(err)
	}
	d.Status = schedules.DentistStatus(st)
	return d, nil
}

func (r *SchedulesRepo) ListDentists(ctx context.Context) ([]schedules.Dentist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, name, status, created_at, updated_at FROM dentists ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedules.Dentist, 0)
	for rows.Next() {
		var (
			d  schedules.Dentist
			st string
		)
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &st, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Status = schedules.DentistStatus(st)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SchedulesRepo) ReplaceWeek(ctx context.Context, dentistID string, entries []schedules.Entry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM dentists WHERE id = $1)`, dentistID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE dentist_id = $1`, dentistID); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO schedule_entries (id, dentist_id, weekday, start_hm, end_hm)
				VALUES ($1,$2,$3,$4,$5)
			`, e.ID, dentistID, e.Weekday, e.Start, e.End); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SchedulesRepo) ListEntries(ctx context.Context) ([]schedules.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dentist_id, weekday, start_hm, end_hm
		FROM schedule_entries
		ORDER BY weekday, start_hm, dentist_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedules.Entry, 0)
	for rows.Next() {
		var e schedules.Entry
		if err := rows.Scan(&e.ID, &e.DentistID, &e.Weekday, &e.Start, &e.End); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SchedulesRepo) AddClosure(ctx context.Context, c schedules.Closure) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO closures (date, reason, created_by, created_at) VALUES ($1,$2,$3,$4)
	`, c.Date, c.Reason, c.CreatedBy, c.CreatedAt)
	return mapErr(err)
}

func (r *SchedulesRepo) RemoveClosure(ctx context.Context, date string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM closures WHERE date = $1`, date)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *SchedulesRepo) GetClosure(ctx context.Context, date string) (schedules.Closure, error) {
	var c schedules.Closure
	err := r.db.QueryRowContext(ctx, `
		SELECT date, reason, created_by, created_at FROM closures WHERE date = $1
	`, date).Scan(&c.Date, &c.Reason, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return schedules.Closure{}, mapErr(err)
	}
	return c, nil
}

func (r *SchedulesRepo) ListClosures(ctx context.Context) ([]schedules.Closure, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, reason, created_by, created_at FROM closures ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedules.Closure, 0)
	for rows.Next() {
		var c schedules.Closure
		if err := rows.Scan(&c.Date, &c.Reason, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
