package errors

// Scope is the extent of work a failure invalidates.
type Scope string

const (
	// ScopeProcess failures terminate the process (startup only).
	ScopeProcess Scope = "process"
	// ScopeTick failures abandon the rest of the current tick.
	ScopeTick Scope = "tick"
	// ScopeTag failures abandon a single tag; the tick continues.
	ScopeTag Scope = "tag"
	// ScopeFile failures abandon a single pending package.
	ScopeFile Scope = "file"
)

// ScopeOf maps an error to the scope it invalidates. Unclassified errors are
// treated as tick failures.
func ScopeOf(err error) Scope {
	se, ok := As(err)
	if !ok {
		return ScopeTick
	}
	if se.Severity == SeverityFatal {
		return ScopeProcess
	}
	switch se.Category {
	case CategorySnapshot, CategoryArchive:
		return ScopeTag
	case CategoryDelivery:
		return ScopeFile
	default:
		return ScopeTick
	}
}
