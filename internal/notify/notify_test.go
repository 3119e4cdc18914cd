package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tagshipper/internal/retry"
)

var fastRetry = retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2)

type fakeConn struct {
	subject    string
	data       [][]byte
	pubErr     error
	failFirst  int
	flushErr   error
	drained    bool
	pubAttempt int
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.pubAttempt++
	if f.pubErr != nil {
		return f.pubErr
	}
	if f.pubAttempt <= f.failFirst {
		return errors.New("nats: connection reconnecting")
	}
	f.subject = subj
	f.data = append(f.data, data)
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error { return f.flushErr }

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisher_PublishesJSON(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "tagshipper.packages", retry.DefaultPolicy())

	err := p.Publish(t.Context(), PackageEvent{Kind: KindPackaged, Project: "proj", Tag: "v1.0", File: "proj-v1.0.zip", TickID: "t1"})
	require.NoError(t, err)
	require.Equal(t, "tagshipper.packages", fc.subject)
	require.Len(t, fc.data, 1)

	var got PackageEvent
	require.NoError(t, json.Unmarshal(fc.data[0], &got))
	require.Equal(t, "v1.0", got.Tag)
	require.Equal(t, KindPackaged, got.Kind)
	require.False(t, got.Timestamp.IsZero())

	require.NoError(t, p.Close())
	require.True(t, fc.drained)
}

func TestNATSPublisher_Errors(t *testing.T) {
	fc := &fakeConn{pubErr: errors.New("closed")}
	err := newPublisher(fc, "s", fastRetry).Publish(t.Context(), PackageEvent{Kind: KindDelivered})
	require.ErrorContains(t, err, "failed to publish event")
	require.Equal(t, 3, fc.pubAttempt)

	fc = &fakeConn{flushErr: errors.New("timeout")}
	err = newPublisher(fc, "s", fastRetry).Publish(t.Context(), PackageEvent{Kind: KindDelivered})
	require.ErrorContains(t, err, "failed to flush event")
}

func TestNATSPublisher_RetriesTransientFailure(t *testing.T) {
	fc := &fakeConn{failFirst: 1}
	err := newPublisher(fc, "s", fastRetry).Publish(t.Context(), PackageEvent{Kind: KindPackaged, File: "a.zip"})
	require.NoError(t, err)
	require.Equal(t, 2, fc.pubAttempt)
	require.Len(t, fc.data, 1)
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "s", fastRetry)
	require.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(t.Context(), PackageEvent{}))
	require.NoError(t, p.Close())
}
