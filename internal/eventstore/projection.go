// Package eventstore keeps a queryable history of what each tick did.
package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Tag statuses derived from events.
const (
	StatusPackaged  = "packaged"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// TagSummary is the latest known state of one tag.
type TagSummary struct {
	Tag       string    `json:"tag"`
	Status    string    `json:"status"`
	TickID    string    `json:"tick_id"`
	File      string    `json:"file,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagHistoryProjection folds events into a per-tag status view.
type TagHistoryProjection struct {
	mu     sync.RWMutex
	store  Store
	tags   map[string]*TagSummary
	byFile map[string]string
}

// NewTagHistoryProjection creates a projection backed by store.
func NewTagHistoryProjection(store Store) *TagHistoryProjection {
	return &TagHistoryProjection{
		store:  store,
		tags:   make(map[string]*TagSummary),
		byFile: make(map[string]string),
	}
}

// Rebuild replays up to limit recent events from the store.
func (p *TagHistoryProjection) Rebuild(ctx context.Context, limit int) error {
	events, err := p.store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags = make(map[string]*TagSummary)
	p.byFile = make(map[string]string)
	// Recent is newest first.
	for i := len(events) - 1; i >= 0; i-- {
		p.applyLocked(events[i])
	}
	return nil
}

// Apply folds a single event into the view.
func (p *TagHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *TagHistoryProjection) applyLocked(e Event) {
	tag := e.Tag
	if tag == "" && e.File != "" {
		tag = p.byFile[e.File]
	}
	if tag == "" {
		return
	}
	s, ok := p.tags[tag]
	if !ok {
		s = &TagSummary{Tag: tag}
		p.tags[tag] = s
	}
	s.TickID = e.TickID
	s.UpdatedAt = e.Timestamp
	s.Error = ""
	if e.File != "" {
		s.File = e.File
		p.byFile[e.File] = tag
	}

	switch e.Type {
	case TypeTagPackaged:
		s.Status = StatusPackaged
	case TypePackageDelivered:
		s.Status = StatusDelivered
	case TypeTagSkipped:
		s.Status = StatusSkipped
	case TypeTagFailed:
		var payload TagFailed
		_ = e.Decode(&payload)
		s.Status, s.Error = StatusFailed, payload.Error
	case TypePackageFailed:
		var payload PackageFailed
		_ = e.Decode(&payload)
		s.Status, s.Error = StatusFailed, payload.Error
	}
}

// Get returns the summary for tag.
func (p *TagHistoryProjection) Get(tag string) (TagSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.tags[tag]
	if !ok {
		return TagSummary{}, false
	}
	return *s, true
}

// Summaries returns all tag summaries, most recently updated first.
func (p *TagHistoryProjection) Summaries() []TagSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]TagSummary, 0, len(p.tags))
	for _, s := range p.tags {
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Tag < out[j].Tag
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
