package eventstore

import (
	"encoding/json"
	"time"
)

// Event is one recorded pipeline occurrence.
type Event struct {
	ID        int64           `json:"id"`
	TickID    string          `json:"tick_id"`
	Type      string          `json:"type"`
	Tag       string          `json:"tag,omitempty"`
	File      string          `json:"file,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errorf(ErrUnmarshalPayloadFailed, err)
	}
	return nil
}
