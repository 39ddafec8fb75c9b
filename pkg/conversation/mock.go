package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Mock implements Recorder in memory for testing.
// Persistence failures can be injected via the error fields.
type Mock struct {
	// GetOrCreateErr is returned by GetOrCreate when set.
	GetOrCreateErr error

	// AppendErr is returned by AppendMessage when set.
	AppendErr error

	mu       sync.Mutex
	byTriple map[string]string
	appended []*MessageRecord
}

// NewMock creates an empty mock recorder.
func NewMock() *Mock {
	return &Mock{byTriple: make(map[string]string)}
}

// GetOrCreate returns a stable ID per triple.
func (m *Mock) GetOrCreate(ctx context.Context, toyID, deviceID, sessionID string) (string, error) {
	if m.GetOrCreateErr != nil {
		return "", m.GetOrCreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := tripleKey(toyID, deviceID, sessionID)
	if id, ok := m.byTriple[key]; ok {
		return id, nil
	}
	id := uuid.NewString()
	m.byTriple[key] = id
	return id, nil
}

// AppendMessage records the turn in memory.
func (m *Mock) AppendMessage(ctx context.Context, conversationID, role, content string, meta SafetyMetadata) (string, error) {
	if m.AppendErr != nil {
		return "", m.AppendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := &MessageRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Safety:         meta,
	}
	m.appended = append(m.appended, msg)
	return msg.ID, nil
}

// Appended returns every recorded message in append order.
func (m *Mock) Appended() []*MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MessageRecord, len(m.appended))
	copy(result, m.appended)
	return result
}

// Verify Mock implements Recorder at compile time.
var _ Recorder = (*Mock)(nil)
