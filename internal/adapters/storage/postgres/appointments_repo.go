package postgres

import (
	"context"
	"database/sql"
	"time"

	"dental-clinic/internal/domain/appointments"
)

type AppointmentsRepo struct {
	db *sql.DB
}

func NewAppointmentsRepo(db *sql.DB) *AppointmentsRepo {
	return &AppointmentsRepo{db: db}
}

const appointmentColumns = `id, reference, patient_id, service_id, dentist_id, starts_at, ends_at, status, notes,
	booked_ip, channel, cancel_reason, decided_by, decided_at, reminder_sent_at, created_at, updated_at`

// holding son los estados que ocupan cupo.
const holding = `status IN ('pending', 'approved')`

// CreateChecked serializa las reservas del mismo día con un advisory lock
// transaccional; las verificaciones y el insert ven el mismo estado.
func (r *AppointmentsRepo) CreateChecked(ctx context.Context, a appointments.Appointment, dayStart, dayEnd time.Time, capacity int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			"appointments:"+dayStart.UTC().Format(time.RFC3339)); err != nil {
			return err
		}

		var booked bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE patient_id = $1 AND `+holding+` AND starts_at >= $2 AND starts_at < $3
			)
		`, a.PatientID, dayStart, dayEnd).Scan(&booked)
		if err != nil {
			return err
		}
		if booked {
			return appointments.ErrAlreadyBooked
		}

		var taken int
		err = tx.QueryRowContext(ctx, `
			SELECT count(*) FROM appointments
			WHERE `+holding+` AND starts_at < $2 AND ends_at > $1
		`, a.StartsAt, a.EndsAt).Scan(&taken)
		if err != nil {
			return err
		}
		if taken >= capacity {
			return appointments.ErrSlotFull
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments (`+appointmentColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`,
			a.ID, a.Reference, a.PatientID, a.ServiceID, a.DentistID, a.StartsAt, a.EndsAt,
			string(a.Status), a.Notes, a.BookedIP, string(a.Channel), a.CancelReason,
			a.DecidedBy, toNullTime(a.DecidedAt), toNullTime(a.ReminderSentAt), a.CreatedAt, a.UpdatedAt,
		)
		return mapErr(err)
	})
}

func (r *AppointmentsRepo) Update(ctx context.Context, a appointments.Appointment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET
			dentist_id = $2,
			status = $3,
			notes = $4,
			cancel_reason = $5,
			decided_by = $6,
			decided_at = $7,
			reminder_sent_at = $8,
			updated_at = $9
		WHERE id = $1
	`,
		a.ID, a.DentistID, string(a.Status), a.Notes, a.CancelReason, a.DecidedBy,
		toNullTime(a.DecidedAt), toNullTime(a.ReminderSentAt), a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	return scanAppointment(r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *AppointmentsRepo) List(ctx context.Context, f appointments.Filter) ([]appointments.Appointment, error) {
	var a args
	if f.PatientID != "" {
		a.add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		a.add("status = ?", string(f.Status))
	}
	if f.From != nil {
		a.add("starts_at >= ?", *f.From)
	}
	if f.To != nil {
		a.add("starts_at < ?", *f.To)
	}
	q := `SELECT ` + appointmentColumns + ` FROM appointments` + a.clause() + ` ORDER BY starts_at`
	q += a.limit(f.Limit)
	return r.query(ctx, q, a.vals...)
}

func (r *AppointmentsRepo) Overlapping(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	return r.query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE `+holding+` AND starts_at < $2 AND ends_at > $1
		ORDER BY starts_at
	`, from, to)
}

func (r *AppointmentsRepo) query(ctx context.Context, q string, vals ...any) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, q, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(s scanner) (appointments.Appointment, error) {
	var (
		a                   appointments.Appointment
		status, channel     string
		decidedAt, reminded sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Reference, &a.PatientID, &a.ServiceID, &a.DentistID, &a.StartsAt, &a.EndsAt,
		&status, &a.Notes, &a.BookedIP, &channel, &a.CancelReason, &a.DecidedBy, &decidedAt, &reminded,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return appointments.Appointment{}, mapErr(err)
	}
	a.Status = appointments.Status(status)
	a.Channel = appointments.Channel(channel)
	a.DecidedAt = fromNullTime(decidedAt)
	a.ReminderSentAt = fromNullTime(reminded)
	return a, nil
}
