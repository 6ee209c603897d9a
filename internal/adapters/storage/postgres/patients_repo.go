package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"dental-clinic/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

const patientColumns = `id, user_id, first_name, last_name, email, phone, birth_date, sex, address, notes, created_at, updated_at`

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, toNullString(p.UserID), p.FirstName, p.LastName, p.Email, p.Phone,
		toNullDate(p.BirthDate), string(p.Sex), p.Address, p.Notes, p.CreatedAt, p.UpdatedAt,
	)
	return mapErr(err)
}

func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			user_id = $2,
			first_name = $3,
			last_name = $4,
			email = $5,
			phone = $6,
			birth_date = $7,
			sex = $8,
			address = $9,
			notes = $10,
			updated_at = $11
		WHERE id = $1
	`,
		p.ID, toNullString(p.UserID), p.FirstName, p.LastName, p.Email, p.Phone,
		toNullDate(p.BirthDate), string(p.Sex), p.Address, p.Notes, p.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Patient{}, ErrNotFound
	}
	return scanPatient(r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

func (r *PatientsRepo) GetByUserID(ctx context.Context, userID string) (patients.Patient, error) {
	return scanPatient(r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE user_id = $1`, userID))
}

func (r *PatientsRepo) FindUnlinkedByEmail(ctx context.Context, email string) (patients.Patient, error) {
	return scanPatient(r.db.QueryRowContext(ctx, `
		SELECT `+patientColumns+` FROM patients
		WHERE user_id IS NULL AND email <> '' AND lower(email) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`, email))
}

func (r *PatientsRepo) Search(ctx context.Context, q string, limit int) ([]patients.Patient, error) {
	var a args
	if q = strings.TrimSpace(q); q != "" {
		a.vals = append(a.vals, "%"+strings.ToLower(q)+"%")
		a.where = append(a.where, `(lower(first_name) LIKE $1 OR lower(last_name) LIKE $1
			OR lower(email) LIKE $1 OR lower(phone) LIKE $1
			OR lower(first_name || ' ' || last_name) LIKE $1)`)
	}
	query := `SELECT ` + patientColumns + ` FROM patients` + a.clause() + ` ORDER BY last_name, first_name`
	query += a.limit(limit)

	rows, err := r.db.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPatient(s scanner) (patients.Patient, error) {
	var (
		p      patients.Patient
		userID sql.NullString
		birth  sql.NullTime
		sex    string
	)
	err := s.Scan(&p.ID, &userID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&birth, &sex, &p.Address, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return patients.Patient{}, mapErr(err)
	}
	p.UserID = userID.String
	p.Sex = patients.Sex(sex)
	if birth.Valid {
		d := time.Date(birth.Time.Year(), birth.Time.Month(), birth.Time.Day(), 0, 0, 0, 0, time.UTC)
		p.BirthDate = &d
	}
	return p, nil
}

func toNullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return sql.NullTime{Time: d, Valid: true}
}
