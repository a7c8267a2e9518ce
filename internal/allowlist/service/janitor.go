// Package service holds allow-list maintenance: expired entries are purged in
// the background so the gate's TTL check stays cheap.
package service

import (
	"context"
	"log"
	"time"

	settingsdomain "accessgate/internal/settings/domain"
)

// Purger deletes allow-list entries created before a cutoff.
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsReader returns the stored lockdown settings, or nil when none exist.
type SettingsReader interface {
	Get(ctx context.Context) (*settingsdomain.LockdownSettings, error)
}

// Janitor periodically deletes allow-list entries older than the configured
// TTL. With a zero TTL entries never expire and the janitor does nothing.
type Janitor struct {
	allowlist Purger
	settings  SettingsReader
	interval  time.Duration
	nowF      func() time.Time
}

func NewJanitor(allowlist Purger, settings SettingsReader, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		allowlist: allowlist,
		settings:  settings,
		interval:  interval,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Run purges once immediately, then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	j.purge(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

// PurgeOnce runs a single purge pass and returns the number of deleted entries.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	s, err := j.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if s == nil {
		s = settingsdomain.Defaults()
	}
	if s.AllowlistTTLDays <= 0 {
		return 0, nil
	}
	cutoff := j.nowF().AddDate(0, 0, -s.AllowlistTTLDays)
	return j.allowlist.DeleteOlderThan(ctx, cutoff)
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.PurgeOnce(ctx)
	if err != nil {
		log.Printf("allowlist janitor: %v", err)
		return
	}
	if n > 0 {
		log.Printf("allowlist janitor: purged %d expired entries", n)
	}
}
