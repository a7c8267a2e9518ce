package events

import (
	"context"

	"accessgate/internal/events/domain"
)

// EventEmitter emits access events (e.g. to OTel Logs or Kafka). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AccessEvent) error
}
