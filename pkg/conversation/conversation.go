// Package conversation persists interaction turns. The pipeline only needs
// two operations: get-or-create a conversation for a (toy, device, session)
// triple and append messages with safety metadata attached.
package conversation

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleUser = "user"
	RoleToy  = "toy"
)

// ErrNotFound is returned when a conversation ID is unknown.
var ErrNotFound = errors.New("conversation: not found")

// SafetyMetadata is attached to every persisted message.
type SafetyMetadata struct {
	// Flagged marks messages that failed a safety check.
	Flagged bool `json:"flagged"`

	// SafetyScore is the classifier score for the message text.
	SafetyScore float64 `json:"safety_score"`

	// SafetyFlags lists the matched category codes, if any.
	SafetyFlags []string `json:"safety_flags,omitempty"`
}

// Record is one stored conversation.
type Record struct {
	ID        string    `json:"id"`
	ToyID     string    `json:"toy_id"`
	DeviceID  string    `json:"device_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRecord is one stored turn.
type MessageRecord struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Safety         SafetyMetadata `json:"safety"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Recorder is the persistence interface the pipeline depends on.
// Implementations must serialize appends within one conversation.
type Recorder interface {
	// GetOrCreate returns the conversation ID for the triple, creating the
	// conversation when none exists.
	GetOrCreate(ctx context.Context, toyID, deviceID, sessionID string) (string, error)

	// AppendMessage stores one turn and returns its message ID.
	AppendMessage(ctx context.Context, conversationID, role, content string, meta SafetyMetadata) (string, error)
}
