package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, tick, typ, tag, file string, payload any) Event {
	t.Helper()
	e, err := New(tick, typ, tag, file, payload)
	require.NoError(t, err)
	return e
}

func TestProjection_DeliveryFollowsFileToTag(t *testing.T) {
	p := NewTagHistoryProjection(NoopStore{})

	p.Apply(mustEvent(t, "t1", TypeTagPackaged, "v1.0", "proj-v1.0.zip", nil))
	got, ok := p.Get("v1.0")
	require.True(t, ok)
	require.Equal(t, StatusPackaged, got.Status)

	p.Apply(mustEvent(t, "t1", TypePackageDelivered, "", "proj-v1.0.zip", PackageDelivered{Destination: "h:/x"}))
	got, _ = p.Get("v1.0")
	require.Equal(t, StatusDelivered, got.Status)
}

func TestProjection_FailureCarriesError(t *testing.T) {
	p := NewTagHistoryProjection(NoopStore{})
	p.Apply(mustEvent(t, "t1", TypeTagFailed, "v2.0", "", TagFailed{Step: "checkout", Error: "boom"}))

	got, ok := p.Get("v2.0")
	require.True(t, ok)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "boom", got.Error)
}

func TestProjection_IgnoresUntaggedEvents(t *testing.T) {
	p := NewTagHistoryProjection(NoopStore{})
	p.Apply(mustEvent(t, "t1", TypeTickAborted, "", "", TickAborted{Stage: "refresh", Error: "offline"}))
	require.Empty(t, p.Summaries())
}

func TestProjection_RebuildFromStore(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Now().Add(-time.Minute)

	events := []Event{
		{TickID: "t1", Type: TypeTagPackaged, Tag: "v1", File: "p-v1.zip", Timestamp: base},
		{TickID: "t1", Type: TypeTagSkipped, Tag: "v2-rc", Timestamp: base.Add(time.Second)},
		{TickID: "t1", Type: TypePackageDelivered, File: "p-v1.zip", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		require.NoError(t, store.Append(ctx, e))
	}

	p := NewTagHistoryProjection(store)
	require.NoError(t, p.Rebuild(ctx, 100))

	summaries := p.Summaries()
	require.Len(t, summaries, 2)
	require.Equal(t, "v1", summaries[0].Tag)
	require.Equal(t, StatusDelivered, summaries[0].Status)
	require.Equal(t, StatusSkipped, summaries[1].Status)
}
