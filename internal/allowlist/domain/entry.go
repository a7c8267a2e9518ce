package domain

import "time"

// Entry is one allow-listed IP for a user. (user_id, ip_address) is unique;
// ID preserves insertion order.
type Entry struct {
	ID        int64
	UserID    string
	IPAddress string
	CreatedAt time.Time
}
