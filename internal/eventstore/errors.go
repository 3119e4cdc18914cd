package eventstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for event store operations.
var (
	ErrDatabaseOpenFailed     = errors.New("could not open event store database")
	ErrInitializeSchemaFailed = errors.New("failed to initialize event store schema")
	ErrEventAppendFailed      = errors.New("failed to append event to store")
	ErrEventQueryFailed       = errors.New("failed to query events from store")
	ErrMarshalPayloadFailed   = errors.New("failed to marshal event payload")
	ErrUnmarshalPayloadFailed = errors.New("failed to unmarshal event payload")
)

func errorf(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
