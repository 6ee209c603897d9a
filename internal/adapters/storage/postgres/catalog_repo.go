package postgres

import (
	"context"
	"database/sql"

	"dental-clinic/internal/domain/catalog"
)

type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const serviceColumns = `id, name, description, price_cents, duration_minutes, is_active, created_at, updated_at`

func (r *CatalogRepo) Create(ctx context.Context, s catalog.Service) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, s.ID, s.Name, s.Description, s.PriceCents, s.DurationMinutes, s.IsActive, s.CreatedAt, s.UpdatedAt)
	return mapErr(err)
}

func (r *CatalogRepo) Update(ctx context.Context, s catalog.Service) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET
			name = $2,
			description = $3,
			price_cents = $4,
			duration_minutes = $5,
			is_active = $6,
			updated_at = $7
		WHERE id = $1
	`, s.ID, s.Name, s.Description, s.PriceCents, s.DurationMinutes, s.IsActive, s.UpdatedAt)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *CatalogRepo) GetByID(ctx context.Context, id string) (catalog.Service, error) {
	var s catalog.Service
	err := r.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.PriceCents, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return catalog.Service{}, mapErr(err)
	}
	return s, nil
}

func (r *CatalogRepo) List(ctx context.Context, onlyActive bool) ([]catalog.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services`
	if onlyActive {
		q += ` WHERE is_active`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]catalog.Service, 0)
	for rows.Next() {
		var s catalog.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.PriceCents, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
