package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ShipperError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *ShipperError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *ShipperError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Git errors

// MirrorError reports that the local mirror could not be prepared. Fatal at startup.
func MirrorError(url string, cause error) *ShipperError {
	return Wrap(cause, CategoryGit, SeverityFatal, "mirror clone failed").
		WithContext("url", url)
}

// RefreshError reports a failed remote update; the tick is abandoned.
func RefreshError(cause error) *ShipperError {
	return Wrap(cause, CategoryGit, SeverityError, "mirror refresh failed").
		WithContext("op", "refresh")
}

// TagListError reports a failed tag listing; the tick is abandoned.
func TagListError(cause error) *ShipperError {
	return Wrap(cause, CategoryGit, SeverityError, "tag listing failed").
		WithContext("op", "tags")
}

// Pipeline errors

func LedgerError(op string, cause error) *ShipperError {
	return Wrap(cause, CategoryLedger, SeverityError, "ledger operation failed").
		WithContext("op", op)
}

// SnapshotError reports a failed snapshot for one tag. output holds the
// combined output of the failing process, when there was one.
func SnapshotError(tag, step string, output []byte, cause error) *ShipperError {
	return Wrap(cause, CategorySnapshot, SeverityError, "snapshot failed").
		WithContext("tag", tag).
		WithContext("step", step).
		WithContext("output", string(output))
}

func ArchiveError(tag, path string, cause error) *ShipperError {
	return Wrap(cause, CategoryArchive, SeverityError, "archive failed").
		WithContext("tag", tag).
		WithContext("path", path)
}

func DeliveryError(path string, output []byte, cause error) *ShipperError {
	return Wrap(cause, CategoryDelivery, SeverityWarning, "delivery failed").
		WithContext("path", path).
		WithContext("output", string(output))
}

func WorkspaceError(operation string, cause error) *ShipperError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "workspace operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *ShipperError {
	return Wrap(cause, CategoryInternal, SeverityError, message)
}
