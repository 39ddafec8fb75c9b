// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "time"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., audio chunks)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event is one interaction event pushed to dashboard clients.
type Event struct {
	Time           string  `json:"time"`
	Kind           string  `json:"kind"` // interaction, redirect, error
	ToyID          string  `json:"toy_id"`
	SessionID      string  `json:"session_id,omitempty"`
	Transcript     string  `json:"transcript,omitempty"`
	Reply          string  `json:"reply,omitempty"`
	Model          string  `json:"model,omitempty"`
	Flagged        bool    `json:"flagged,omitempty"`
	ProcessingMs   int64   `json:"processing_ms,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Error          string  `json:"error,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(kind, toyID string) Event {
	return Event{
		Time:  time.Now().Format(time.RFC3339),
		Kind:  kind,
		ToyID: toyID,
	}
}
