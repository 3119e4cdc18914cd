package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTickID     = "tick_id"
	KeyTag        = "tag"
	KeyMarker     = "marker"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyURL        = "url"
	KeyName       = "name"
	KeyDest       = "destination"
	KeyCount      = "count"
	KeyBytes      = "bytes"
	KeyOutput     = "output"
	KeyScope      = "scope"
	KeyCategory   = "category"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TickID(id string) slog.Attr      { return slog.String(KeyTickID, id) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Marker(m string) slog.Attr       { return slog.String(KeyMarker, m) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Destination(d string) slog.Attr  { return slog.String(KeyDest, d) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Scope(s string) slog.Attr        { return slog.String(KeyScope, s) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }

// Since reports the elapsed time from start in milliseconds.
func Since(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

// Output renders captured process output; empty output yields an empty string value.
func Output(b []byte) slog.Attr { return slog.String(KeyOutput, string(b)) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
