package metrics

import "time"

// TickOutcome labels how a tick ended.
type TickOutcome string

const (
	TickSuccess TickOutcome = "success"
	TickPartial TickOutcome = "partial" // some tags or packages failed
	TickAborted TickOutcome = "aborted" // refresh, tag listing or ledger failed
	TickPanic   TickOutcome = "panic"
)

// TagResult labels the fate of one new tag.
type TagResult string

const (
	TagPackaged TagResult = "packaged"
	TagFailed   TagResult = "failed"
	TagSkipped  TagResult = "skipped"
)

// Recorder defines observability hooks for ticks, tags and deliveries.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveTickDuration(d time.Duration)
	IncTickOutcome(outcome TickOutcome)
	IncTagResult(result TagResult)
	ObservePackageBytes(format string, n int64)
	ObserveDelivery(d time.Duration, success bool)
	SetPendingPackages(n int)
	IncMarkerAdvance()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTickDuration(time.Duration)   {}
func (NoopRecorder) IncTickOutcome(TickOutcome)          {}
func (NoopRecorder) IncTagResult(TagResult)              {}
func (NoopRecorder) ObservePackageBytes(string, int64)   {}
func (NoopRecorder) ObserveDelivery(time.Duration, bool) {}
func (NoopRecorder) SetPendingPackages(int)              {}
func (NoopRecorder) IncMarkerAdvance()                   {}
