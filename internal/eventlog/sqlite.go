package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"patridefi/internal/domain"
)

// SQLiteLog is a durable single-node Log backed by an embedded SQLite
// database. Events are stored one row per sequence number with the full
// record as JSON, so the schema survives payload evolution.
type SQLiteLog struct {
	db *sql.DB

	// Appends are serialized so sequence assignment stays contiguous.
	mu     sync.Mutex
	closed bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq            INTEGER PRIMARY KEY,
	type           TEXT    NOT NULL,
	schema_version INTEGER NOT NULL,
	timestamp      INTEGER NOT NULL,
	payload        TEXT    NOT NULL
);
`

// OpenSQLiteLog opens (creating if needed) a log at path. Use ":memory:"
// for an ephemeral database.
func OpenSQLiteLog(ctx context.Context, path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite log: %w", err)
	}

	// The sqlite driver does not tolerate concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

// Compile-time interface check.
var _ Log = (*SQLiteLog)(nil)

// Close closes the underlying database.
func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// Append stamps and commits the batch in a single transaction.
func (l *SQLiteLog) Append(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return ErrInvalidInput
	}
	for _, ev := range events {
		if ev == nil {
			return ErrInvalidInput
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&last); err != nil {
		return fmt.Errorf("read last seq: %w", err)
	}

	next := uint64(last.Int64) + 1
	for i, ev := range events {
		stamped := *ev
		stamped.Seq = next + uint64(i)
		stamped.SchemaVersion = domain.EventSchemaVersion

		payload, err := json.Marshal(&stamped)
		if err != nil {
			return fmt.Errorf("marshal event seq %d: %w", stamped.Seq, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (seq, type, schema_version, timestamp, payload)
			VALUES (?, ?, ?, ?, ?)
		`, stamped.Seq, string(stamped.Type), stamped.SchemaVersion, stamped.Timestamp, string(payload))
		if err != nil {
			return fmt.Errorf("insert event seq %d: %w", stamped.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	// Reflect the assigned sequence numbers back to the caller only
	// after the batch is durable.
	for i, ev := range events {
		ev.Seq = next + uint64(i)
		ev.SchemaVersion = domain.EventSchemaVersion
	}
	return nil
}

// ReadFrom returns up to limit events with Seq >= fromSeq in order.
func (l *SQLiteLog) ReadFrom(ctx context.Context, fromSeq uint64, limit int) ([]*domain.Event, error) {
	query := `SELECT payload FROM events WHERE seq >= ? ORDER BY seq ASC`
	args := []any{int64(fromSeq)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// LastSeq returns the newest sequence number, or 0 for an empty log.
func (l *SQLiteLog) LastSeq(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	if err := l.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return uint64(last.Int64), nil
}
