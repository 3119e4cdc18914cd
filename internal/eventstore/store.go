package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves pipeline events.
type Store interface {
	// Append records an event. A zero Timestamp is set to now.
	Append(ctx context.Context, e Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	// ByTick returns the events of one tick in insertion order.
	ByTick(ctx context.Context, tickID string) ([]Event, error)
	// Prune deletes events older than before and reports how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// NoopStore discards events (history disabled).
type NoopStore struct{}

func (NoopStore) Append(context.Context, Event) error                { return nil }
func (NoopStore) Recent(context.Context, int) ([]Event, error) { return nil, nil }
func (NoopStore) ByTick(context.Context, string) ([]Event, error) { return nil, nil }
func (NoopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (NoopStore) Close() error                                       { return nil }
