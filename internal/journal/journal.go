// Package journal implements the append-only audit event log.
package journal

import (
	"context"
	"time"

	"jax-execution-core/internal/domain"
)

// Journal is the append-only event log. Implementations must serialize
// their own writes.
type Journal interface {
	Log(ctx context.Context, event domain.JournalEvent, data string, correlationID string) error
	GetHistory(ctx context.Context, from, to time.Time, event *domain.JournalEvent) ([]domain.JournalEntry, error)
	GetOrderHistory(ctx context.Context, correlationID string) ([]domain.JournalEntry, error)
	Flush(ctx context.Context) error
}
