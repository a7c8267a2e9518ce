package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"accessgate/internal/approval/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an approval request repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the request for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, requested_ip, status, requested_at, resolved_at, resolved_by
		FROM approval_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// UpsertPending creates a pending request or refreshes the existing pending
// one for (userID, ip). The partial unique index on pending rows makes the
// insert-or-refresh a single atomic statement.
func (r *PostgresRepository) UpsertPending(ctx context.Context, id, userID, ip string, at time.Time) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO approval_requests (id, user_id, requested_ip, status, requested_at)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (user_id, requested_ip) WHERE status = 'pending'
		DO UPDATE SET requested_at = EXCLUDED.requested_at
		RETURNING id, user_id, requested_ip, status, requested_at, resolved_at, resolved_by`,
		id, userID, ip, at)
	return scanRequest(row)
}

// ListPending returns all pending requests, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, requested_ip, status, requested_at, resolved_at, resolved_by
		FROM approval_requests WHERE status = 'pending' ORDER BY requested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Resolve moves the request out of pending in one guarded update, so exactly
// one of two concurrent resolutions wins.
func (r *PostgresRepository) Resolve(ctx context.Context, id string, status domain.Status, resolvedBy string, at time.Time) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE approval_requests
		SET status = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING id, user_id, requested_ip, status, requested_at, resolved_at, resolved_by`,
		id, string(status), resolvedBy, at)
	return scanRequest(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var req domain.Request
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString
	err := row.Scan(&req.ID, &req.UserID, &req.RequestedIP, &req.Status,
		&req.RequestedAt, &resolvedAt, &resolvedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	if resolvedBy.Valid {
		req.ResolvedBy = resolvedBy.String
	}
	return &req, nil
}
