package repository

import (
	"context"
	"database/sql"
	"time"

	"accessgate/internal/allowlist/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an allowlist repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Contains reports whether ip is allow-listed for userID, ignoring entries
// created before notBefore (zero time disables the cutoff).
func (r *PostgresRepository) Contains(ctx context.Context, userID, ip string, notBefore time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM allowlist_entries
			WHERE user_id = $1 AND ip_address = $2 AND created_at >= $3
		)`, userID, ip, notBefore).Scan(&exists)
	return exists, err
}

// Add inserts (userID, ip); conflict on the unique pair is a no-op.
func (r *PostgresRepository) Add(ctx context.Context, userID, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allowlist_entries (user_id, ip_address, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, ip_address) DO NOTHING`, userID, ip)
	return err
}

// Remove deletes (userID, ip).
func (r *PostgresRepository) Remove(ctx context.Context, userID, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM allowlist_entries WHERE user_id = $1 AND ip_address = $2`, userID, ip)
	return err
}

// ListByUser returns the user's entries in insertion order.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, ip_address, created_at
		FROM allowlist_entries WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountByUser returns the number of entries for userID.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM allowlist_entries WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// DeleteOlderThan removes entries created before the cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM allowlist_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
