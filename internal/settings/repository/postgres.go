package repository

import (
	"context"
	"database/sql"
	"errors"

	"accessgate/internal/settings/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a settings repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the stored settings, or nil if none have been saved yet.
func (r *PostgresRepository) Get(ctx context.Context) (*domain.LockdownSettings, error) {
	var s domain.LockdownSettings
	err := r.db.QueryRowContext(ctx, `
		SELECT reverify_on_reset, auto_allowlist_after_challenge, allowlist_ttl_days,
		       max_allowlist_entries, rate_limit_max_failures, rate_limit_window_seconds, updated_at
		FROM lockdown_settings WHERE id = true`).
		Scan(&s.ReverifyOnReset, &s.AutoAllowlistAfterChallenge, &s.AllowlistTTLDays,
			&s.MaxAllowlistEntries, &s.RateLimitMaxFailures, &s.RateLimitWindowSeconds, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save upserts the single settings row.
func (r *PostgresRepository) Save(ctx context.Context, s *domain.LockdownSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lockdown_settings (id, reverify_on_reset, auto_allowlist_after_challenge,
			allowlist_ttl_days, max_allowlist_entries, rate_limit_max_failures,
			rate_limit_window_seconds, updated_at)
		VALUES (true, $1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			reverify_on_reset = EXCLUDED.reverify_on_reset,
			auto_allowlist_after_challenge = EXCLUDED.auto_allowlist_after_challenge,
			allowlist_ttl_days = EXCLUDED.allowlist_ttl_days,
			max_allowlist_entries = EXCLUDED.max_allowlist_entries,
			rate_limit_max_failures = EXCLUDED.rate_limit_max_failures,
			rate_limit_window_seconds = EXCLUDED.rate_limit_window_seconds,
			updated_at = now()`,
		s.ReverifyOnReset, s.AutoAllowlistAfterChallenge, s.AllowlistTTLDays,
		s.MaxAllowlistEntries, s.RateLimitMaxFailures, s.RateLimitWindowSeconds)
	return err
}
