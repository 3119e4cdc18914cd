package eventstore

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeTickAborted      = "tick_aborted"
	TypeTagPackaged      = "tag_packaged"
	TypeTagFailed        = "tag_failed"
	TypeTagSkipped       = "tag_skipped"
	TypePackageDelivered = "package_delivered"
	TypePackageFailed    = "package_failed"
)

// TickAborted is recorded when a tick stops before processing tags.
type TickAborted struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// TagPackaged is recorded when a tag's package is in the delivery area.
type TagPackaged struct {
	Format     string `json:"format"`
	Bytes      int64  `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
}

// TagFailed is recorded when a tag is abandoned.
type TagFailed struct {
	Step   string `json:"step,omitempty"`
	Error  string `json:"error"`
	Output string `json:"output,omitempty"`
}

// TagSkipped is recorded when the filter rejects a tag.
type TagSkipped struct {
	Filter string `json:"filter"`
}

// PackageDelivered is recorded for a successful transfer.
type PackageDelivered struct {
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
	DurationMS  int64  `json:"duration_ms"`
}

// PackageFailed is recorded for a failed transfer. The file is gone afterwards.
type PackageFailed struct {
	Destination string `json:"destination"`
	Error       string `json:"error"`
	Output      string `json:"output,omitempty"`
}

// New builds an event of type typ carrying payload.
func New(tickID, typ, tag, file string, payload any) (Event, error) {
	e := Event{TickID: tickID, Type: typ, Tag: tag, File: file, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, errorf(ErrMarshalPayloadFailed, err)
		}
		e.Payload = data
	}
	return e, nil
}
