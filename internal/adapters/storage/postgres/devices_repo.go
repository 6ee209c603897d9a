package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/devices"
)

type DevicesRepo struct {
	db *sql.DB
}

func NewDevicesRepo(db *sql.DB) *DevicesRepo {
	return &DevicesRepo{db: db}
}

const deviceColumns = `id, user_id, fingerprint, label, user_agent, platform, ip, status, approved_by, approved_at, last_seen_at, created_at, updated_at`

func (r *DevicesRepo) Create(ctx context.Context, d devices.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		d.ID, d.UserID, d.Fingerprint, d.Label, d.UserAgent, d.Platform, d.IP,
		string(d.Status), d.ApprovedBy, toNullTime(d.ApprovedAt), toNullTime(d.LastSeenAt),
		d.CreatedAt, d.UpdatedAt,
	)
	return mapErr(err)
}

func (r *DevicesRepo) Update(ctx context.Context, d devices.Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET
			label = $2,
			user_agent = $3,
			platform = $4,
			ip = $5,
			status = $6,
			approved_by = $7,
			approved_at = $8,
			last_seen_at = $9,
			updated_at = $10
		WHERE id = $1
	`,
		d.ID, d.Label, d.UserAgent, d.Platform, d.IP, string(d.Status),
		d.ApprovedBy, toNullTime(d.ApprovedAt), toNullTime(d.LastSeenAt), d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *DevicesRepo) GetByID(ctx context.Context, id string) (devices.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
}

func (r *DevicesRepo) GetByFingerprint(ctx context.Context, userID, fingerprint string) (devices.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint))
}

func (r *DevicesRepo) List(ctx context.Context, status devices.Status) ([]devices.Device, error) {
	var a args
	if status != "" {
		a.add("status = ?", string(status))
	}
	return r.query(ctx, `SELECT `+deviceColumns+` FROM devices`+a.clause()+` ORDER BY created_at`, a.vals...)
}

func (r *DevicesRepo) ListByUser(ctx context.Context, userID string) ([]devices.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *DevicesRepo) query(ctx context.Context, q string, vals ...any) ([]devices.Device, error) {
	rows, err := r.db.QueryContext(ctx, q, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]devices.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDevice(s scanner) (devices.Device, error) {
	var (
		d                    devices.Device
		status               string
		approvedAt, lastSeen sql.NullTime
	)
	err := s.Scan(&d.ID, &d.UserID, &d.Fingerprint, &d.Label, &d.UserAgent, &d.Platform, &d.IP,
		&status, &d.ApprovedBy, &approvedAt, &lastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return devices.Device{}, mapErr(err)
	}
	d.Status = devices.Status(status)
	d.ApprovedAt = fromNullTime(approvedAt)
	d.LastSeenAt = fromNullTime(lastSeen)
	return d, nil
}
