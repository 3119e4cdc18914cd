// Package ledger tracks which tags have already been processed and computes
// the tags that appeared since.
//
// The Last-Seen Marker is advanced as soon as new tags are handed out, before
// they are packaged. A crash between the two skips those tags permanently.
package ledger

import (
	"log/slog"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/tagorder"
)

// Ledger compares the tag list against the persisted marker.
type Ledger struct {
	store MarkerStore
}

// New returns a ledger backed by store.
func New(store MarkerStore) *Ledger { return &Ledger{store: store} }

// Marker returns the current Last-Seen Marker ("" when unset).
func (l *Ledger) Marker() (string, error) {
	m, err := l.store.Load()
	if err != nil {
		return "", shiperrors.LedgerError("load", err)
	}
	return m, nil
}

// Diff returns the tags strictly after marker in version order. An empty
// marker yields every tag. A marker that is not in the list also yields every
// tag, which reprocesses the whole history after an upstream tag deletion.
func Diff(tags []string, marker string) []string {
	sorted := tagorder.Sorted(tags)
	if marker == "" {
		return sorted
	}
	idx := tagorder.Index(sorted, marker)
	if idx < 0 {
		slog.Warn("Last-seen tag not found in tag list; treating every tag as new",
			logfields.Marker(marker), logfields.Count(len(sorted)))
		return sorted
	}
	return sorted[idx+1:]
}

// Pending returns the tags the next call to NewTagsSince would hand out,
// without advancing the marker.
func (l *Ledger) Pending(tags []string) ([]string, error) {
	marker, err := l.Marker()
	if err != nil {
		return nil, err
	}
	return Diff(tags, marker), nil
}

// NewTagsSince returns the tags newer than the marker and advances the marker
// to the newest of them. When nothing is new the marker is left untouched. If
// the marker cannot be persisted no tags are returned.
func (l *Ledger) NewTagsSince(tags []string) ([]string, error) {
	fresh, err := l.Pending(tags)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	last := fresh[len(fresh)-1]
	if err := l.store.Store(last); err != nil {
		return nil, shiperrors.LedgerError("store", err).WithContext("tag", last)
	}
	slog.Debug("Advanced last-seen tag", logfields.Marker(last), logfields.Count(len(fresh)))
	return fresh, nil
}
