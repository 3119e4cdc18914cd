// Package notify announces finished packages and deliveries on a message bus.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/retry"
)

// Package event kinds.
const (
	KindPackaged  = "packaged"
	KindDelivered = "delivered"
	KindFailed    = "delivery_failed"
)

// PackageEvent is the JSON body published for each package milestone.
type PackageEvent struct {
	Kind        string    `json:"kind"`
	Project     string    `json:"project"`
	Tag         string    `json:"tag,omitempty"`
	File        string    `json:"file"`
	Bytes       int64     `json:"bytes,omitempty"`
	Destination string    `json:"destination,omitempty"`
	TickID      string    `json:"tick_id"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher sends package events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev PackageEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, PackageEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }

// conn is the subset of *nats.Conn used by NATSPublisher.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes events on a core NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
	policy  retry.Policy
}

// NewNATSPublisher connects to url and publishes on subject, retrying
// transient failures under policy.
func NewNATSPublisher(url, subject string, policy retry.Policy) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("tagshipper"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifications enabled", logfields.URL(url), slog.String("subject", subject))
	return newPublisher(nc, subject, policy), nil
}

func newPublisher(c conn, subject string, policy retry.Policy) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject, policy: policy}
}

// Publish marshals ev and waits for the server to acknowledge the flush,
// retrying transient failures under the publisher's policy.
func (p *NATSPublisher) Publish(ctx context.Context, ev PackageEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.policy.Do(ctx, func() error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.conn.FlushWithContext(flushCtx); err != nil {
			return fmt.Errorf("failed to flush event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("Published package event",
		slog.String("kind", ev.Kind),
		logfields.File(ev.File),
		logfields.TickID(ev.TickID))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
