package repository

import (
	"context"
	"database/sql"

	"accessgate/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy or (nil, nil) when absent.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, rules, enabled, created_at, updated_at
		FROM policies WHERE id = $1`, id)
	var p domain.Policy
	err := row.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all policies in creation order.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Policy, error) {
	return r.list(ctx, `
		SELECT id, name, rules, enabled, created_at, updated_at
		FROM policies ORDER BY created_at`)
}

// ListEnabled returns only the enabled policies in creation order.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	return r.list(ctx, `
		SELECT id, name, rules, enabled, created_at, updated_at
		FROM policies WHERE enabled ORDER BY created_at`)
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create inserts a policy.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policies (id, name, rules, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update rewrites name, rules and enabled for an existing policy.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE policies SET name = $2, rules = $3, enabled = $4, updated_at = now()
		WHERE id = $1`, p.ID, p.Name, p.Rules, p.Enabled)
	return err
}

// Delete removes the policy.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	return err
}
