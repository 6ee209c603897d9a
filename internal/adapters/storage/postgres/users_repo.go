package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/users"
	"dental-clinic/internal/ports/auth"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

const userColumns = `id, email, password_hash, role, status, name, phone, created_at, updated_at, last_login_at`

func (r *UsersRepo) Create(ctx context.Context, u users.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), string(u.Status),
		u.Name, u.Phone, u.CreatedAt, u.UpdatedAt, toNullTime(u.LastLoginAt),
	)
	return mapErr(err)
}

func (r *UsersRepo) Update(ctx context.Context, u users.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET
			email = $2,
			password_hash = $3,
			role = $4,
			status = $5,
			name = $6,
			phone = $7,
			updated_at = $8,
			last_login_at = $9
		WHERE id = $1
	`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), string(u.Status),
		u.Name, u.Phone, u.UpdatedAt, toNullTime(u.LastLoginAt),
	)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

func (r *UsersRepo) List(ctx context.Context, role auth.Role) ([]users.User, error) {
	var a args
	if role != "" {
		a.add("role = ?", string(role))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+a.clause()+` ORDER BY email`, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (users.User, error) {
	var (
		u         users.User
		role      string
		status    string
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &status, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return users.User{}, mapErr(err)
	}
	u.Role = auth.Role(role)
	u.Status = users.Status(status)
	u.LastLoginAt = fromNullTime(lastLogin)
	return u, nil
}
