// Package clawtypes holds the data model shared across ClawGate's
// components: events, configuration snapshots, pane descriptors, detected
// questions, and federation command/response frames.
package clawtypes

import "time"

// EventType enumerates the fixed set of event types the bus accepts.
// Unknown types are rejected at the producer boundary.
type EventType string

const (
	EventInboundMessage       EventType = "inbound_message"
	EventEchoMessage          EventType = "echo_message"
	EventOutboundMessage      EventType = "outbound_message"
	EventTmuxCompletion       EventType = "tmux.completion"
	EventTmuxQuestion         EventType = "tmux.question"
	EventTmuxProgress         EventType = "tmux.progress"
	EventTmuxSessionModeUpdated EventType = "tmux.session_mode_updated"
)

// KnownEventTypes is the exhaustive set accepted by EventBus.Append.
var KnownEventTypes = map[EventType]struct{}{
	EventInboundMessage:         {},
	EventEchoMessage:            {},
	EventOutboundMessage:        {},
	EventTmuxCompletion:         {},
	EventTmuxQuestion:           {},
	EventTmuxProgress:           {},
	EventTmuxSessionModeUpdated: {},
}

// Event is one entry in the EventBus's ordered log.
type Event struct {
	ID         int64             `json:"id"`
	Type       EventType         `json:"type"`
	Adapter    string            `json:"adapter"`
	ObservedAt time.Time         `json:"observed_at"`
	Payload    map[string]string `json:"payload"`
}
