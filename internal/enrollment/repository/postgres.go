package repository

import (
	"context"
	"database/sql"
	"errors"

	"accessgate/internal/enrollment/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an enrollment repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUser returns the enrollment for userID, or nil if none exists.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, secret, confirmed, created_at, updated_at
		FROM enrollments WHERE user_id = $1`, userID).
		Scan(&e.UserID, &e.Secret, &e.Confirmed, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Upsert stores a fresh unconfirmed secret for userID.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, secret string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, secret, confirmed, created_at, updated_at)
		VALUES ($1, $2, false, now(), now())
		ON CONFLICT (user_id)
		DO UPDATE SET secret = EXCLUDED.secret, confirmed = false, updated_at = now()`,
		userID, secret)
	return err
}

// MarkConfirmed flips the enrollment to confirmed in a single guarded update.
func (r *PostgresRepository) MarkConfirmed(ctx context.Context, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE enrollments SET confirmed = true, updated_at = now()
		WHERE user_id = $1 AND confirmed = false`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
