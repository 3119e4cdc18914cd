package daemon

import (
	"time"

	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
)

// TickSummary is the JSON view of a TickReport.
type TickSummary struct {
	TickID         string    `json:"tick_id"`
	Outcome        string    `json:"outcome"`
	Stage          string    `json:"stage,omitempty"`
	Error          string    `json:"error,omitempty"`
	NewTags        int       `json:"new_tags"`
	Packaged       int       `json:"packaged"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	Delivered      int       `json:"delivered"`
	DeliveryFailed int       `json:"delivery_failed"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
}

// Summary converts the report for display.
func (r *TickReport) Summary() TickSummary {
	s := TickSummary{
		TickID:         r.TickID,
		Outcome:        string(r.Outcome),
		Stage:          r.Stage,
		NewTags:        len(r.NewTags),
		Packaged:       len(r.Packaged),
		Skipped:        len(r.Skipped),
		Failed:         len(r.Failed),
		Delivered:      r.Delivery.Delivered,
		DeliveryFailed: r.Delivery.Failed,
		StartedAt:      r.Started,
		DurationMS:     r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Status is served on the health endpoint.
type Status struct {
	State    State                   `json:"state"`
	Project  string                  `json:"project"`
	Marker   string                  `json:"marker,omitempty"`
	LastTick *TickSummary            `json:"last_tick,omitempty"`
	Tags     []eventstore.TagSummary `json:"tags,omitempty"`
}

// Status returns a point-in-time view of the daemon.
func (d *Daemon) Status() Status {
	st := Status{
		State:   d.State(),
		Project: d.Config().Name,
		Tags:    d.projection.Summaries(),
	}
	if marker, err := d.ledger.Marker(); err == nil {
		st.Marker = marker
	}
	if last := d.LastTick(); last != nil {
		summary := last.Summary()
		st.LastTick = &summary
	}
	return st
}
