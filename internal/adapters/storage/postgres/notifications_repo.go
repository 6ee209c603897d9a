package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/notifications"
)

type NotificationsRepo struct {
	db *sql.DB
}

func NewNotificationsRepo(db *sql.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

const notificationColumns = `id, kind, channel, recipient, subject, related_id, status, attempts, last_error, created_at, updated_at, sent_at`

func (r *NotificationsRepo) Create(ctx context.Context, l notifications.Log) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_logs (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		l.ID, string(l.Kind), string(l.Channel), l.Recipient, l.Subject, l.RelatedID,
		string(l.Status), l.Attempts, l.LastError, l.CreatedAt, l.UpdatedAt, toNullTime(l.SentAt),
	)
	return mapErr(err)
}

func (r *NotificationsRepo) Update(ctx context.Context, l notifications.Log) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notification_logs
		SET status = $2, attempts = $3, last_error = $4, updated_at = $5, sent_at = $6
		WHERE id = $1
	`, l.ID, string(l.Status), l.Attempts, l.LastError, l.UpdatedAt, toNullTime(l.SentAt))
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *NotificationsRepo) GetByID(ctx context.Context, id string) (notifications.Log, error) {
	return scanNotification(r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notification_logs WHERE id = $1`, id))
}

func (r *NotificationsRepo) List(ctx context.Context, f notifications.LogFilter) ([]notifications.Log, error) {
	var a args
	if f.Status != "" {
		a.add("status = ?", string(f.Status))
	}
	if f.Channel != "" {
		a.add("channel = ?", string(f.Channel))
	}
	q := `SELECT ` + notificationColumns + ` FROM notification_logs` + a.clause() + ` ORDER BY created_at DESC`
	q += a.limit(f.Limit)

	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notifications.Log, 0)
	for rows.Next() {
		l, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanNotification(s scanner) (notifications.Log, error) {
	var (
		l                     notifications.Log
		kind, channel, status string
		sentAt                sql.NullTime
	)
	err := s.Scan(&l.ID, &kind, &channel, &l.Recipient, &l.Subject, &l.RelatedID,
		&status, &l.Attempts, &l.LastError, &l.CreatedAt, &l.UpdatedAt, &sentAt)
	if err != nil {
		return notifications.Log{}, mapErr(err)
	}
	l.Kind = notifications.Kind(kind)
	l.Channel = notifications.Channel(channel)
	l.Status = notifications.Status(status)
	l.SentAt = fromNullTime(sentAt)
	return l, nil
}
