package eventstore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errorf(ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errorf(ErrInitializeSchemaFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		file TEXT NOT NULL DEFAULT '',
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_tick_id ON events(tick_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_tag ON events(tag);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (tick_id, event_type, timestamp, tag, file, payload) VALUES (?, ?, ?, ?, ?, ?)",
		e.TickID, e.Type, e.Timestamp.UnixMilli(), e.Tag, e.File, []byte(e.Payload),
	)
	if err != nil {
		return errorf(ErrEventAppendFailed, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, tick_id, event_type, timestamp, tag, file, payload FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errorf(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// ByTick retrieves all events of one tick.
func (s *SQLiteStore) ByTick(ctx context.Context, tickID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, tick_id, event_type, timestamp, tag, file, payload FROM events WHERE tick_id = ? ORDER BY id",
		tickID,
	)
	if err != nil {
		return nil, errorf(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// Prune deletes events recorded before the given time.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE timestamp < ?", before.UnixMilli())
	if err != nil {
		return 0, errorf(ErrEventQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errorf(ErrEventQueryFailed, err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TickID, &e.Type, &ts, &e.Tag, &e.File, &payload); err != nil {
			return nil, errorf(ErrEventQueryFailed, err)
		}
		e.Timestamp = time.UnixMilli(ts)
		if len(payload) > 0 {
			e.Payload = payload
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errorf(ErrEventQueryFailed, err)
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
