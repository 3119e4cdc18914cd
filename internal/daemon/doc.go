// Package daemon runs the tagshipper poll loop.
//
// A Daemon owns the mirror, the tag ledger, the snapshot builder, the
// archiver and the delivery drain. Each tick refreshes the mirror, packages
// every tag newer than the last-seen marker and drains the delivery area.
// Failures are dispatched on their error scope at the tick boundary; nothing
// escapes a tick.
//
// The only concurrent work is ambient: the config watcher, the history
// retention scheduler and the metrics server, none of which touch the mirror,
// the marker or the delivery area.
package daemon
