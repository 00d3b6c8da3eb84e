package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"jax-execution-core/internal/clock"
	"jax-execution-core/internal/domain"
)

// bufferedEntry is a non-durable-on-return event waiting to be flushed.
type bufferedEntry struct {
	event         domain.JournalEvent
	data          string
	correlationID string
	timestamp     time.Time
}

// PostgresJournal is the Postgres-backed Journal. Rows are append-only and
// never mutated; the unique (timestamp, correlation_id, event_type) index
// absorbs duplicate replays.
type PostgresJournal struct {
	db *sql.DB

	mu     sync.Mutex
	buffer []bufferedEntry
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Log writes the entry. Events in domain.JournalEvent.DurableOnReturn() are
// written synchronously before Log returns; other events are appended to an
// in-memory buffer drained by Flush.
func (j *PostgresJournal) Log(ctx context.Context, event domain.JournalEvent, data string, correlationID string) error {
	ts := clock.Now(ctx)

	if !event.DurableOnReturn() {
		j.mu.Lock()
		j.buffer = append(j.buffer, bufferedEntry{event: event, data: data, correlationID: correlationID, timestamp: ts})
		j.mu.Unlock()
		return nil
	}

	return j.insert(ctx, ts, event, data, correlationID)
}

func (j *PostgresJournal) insert(ctx context.Context, ts time.Time, event domain.JournalEvent, data, correlationID string) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO journal (timestamp, event_type, data, correlation_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (timestamp, correlation_id, event_type) DO NOTHING
`, ts.UTC(), event.String(), data, correlationID)
	if err != nil {
		return fmt.Errorf("journal.log: %w", err)
	}
	return nil
}

// Flush drains the buffer of non-durable events to the database.
func (j *PostgresJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	pending := j.buffer
	j.buffer = nil
	j.mu.Unlock()

	for _, e := range pending {
		if err := j.insert(ctx, e.timestamp, e.event, e.data, e.correlationID); err != nil {
			return err
		}
	}
	return nil
}

func (j *PostgresJournal) GetHistory(ctx context.Context, from, to time.Time, event *domain.JournalEvent) ([]domain.JournalEntry, error) {
	query := `SELECT id, timestamp, event_type, data, correlation_id FROM journal WHERE timestamp >= $1 AND timestamp <= $2`
	args := []any{from.UTC(), to.UTC()}
	if event != nil {
		query += " AND event_type = $3"
		args = append(args, event.String())
	}
	query += " ORDER BY id ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal.get_history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (j *PostgresJournal) GetOrderHistory(ctx context.Context, correlationID string) ([]domain.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT id, timestamp, event_type, data, correlation_id
FROM journal
WHERE correlation_id = $1
ORDER BY id ASC
`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("journal.get_order_history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.JournalEntry, error) {
	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &e.Data, &e.CorrelationID); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.EventType = parseEvent(eventType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

func parseEvent(name string) domain.JournalEvent {
	for e := domain.EventOrderCreated; e <= domain.EventOrderPartiallyFilled; e++ {
		if e.String() == name {
			return e
		}
	}
	return -1
}
