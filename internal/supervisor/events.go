package supervisor

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of stream event.
type EventType string

const (
	// EventSystem is a system-level event (init is a subtype).
	EventSystem EventType = "system"
	// EventAssistant is an assistant message event.
	EventAssistant EventType = "assistant"
	// EventResult is a completion/result event.
	EventResult EventType = "result"
	// EventError is an error event.
	EventError EventType = "error"
)

// StreamEvent is one decoded record from a line of child-process stdout.
// The record is self-describing; beyond the identifying fields the payload
// is forwarded verbatim in Raw for consumers to interpret.
type StreamEvent struct {
	Type      EventType `json:"type"`
	SubType   string    `json:"subtype,omitempty"`
	SessionID string    `json:"session_id,omitempty"`

	// IsErrorResult is set on result events reporting a failed run.
	IsErrorResult bool `json:"is_error,omitempty"`

	// Raw is the source line, verbatim.
	Raw json.RawMessage `json:"-"`

	// Timestamp records when the line was read.
	Timestamp time.Time `json:"-"`
}

// IsInit returns true if this is a system init event.
func (e *StreamEvent) IsInit() bool {
	return e.Type == EventSystem && e.SubType == "init"
}

// IsResult returns true if this is a result (completion) event.
func (e *StreamEvent) IsResult() bool {
	return e.Type == EventResult
}

// IsError returns true for explicit error events and result events with
// is_error set.
func (e *StreamEvent) IsError() bool {
	return e.Type == EventError || e.IsErrorResult
}
