package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONStore implements Recorder using a JSON file for persistence.
// Suitable for single-node deployments; a database-backed Recorder can
// replace it without touching the pipeline.
type JSONStore struct {
	path string

	mu            sync.RWMutex
	conversations map[string]*Record
	messages      map[string][]*MessageRecord
	byTriple      map[string]string
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version       int                         `json:"version"`
	UpdatedAt     string                      `json:"updated_at"`
	Conversations []*Record                   `json:"conversations"`
	Messages      map[string][]*MessageRecord `json:"messages"`
}

const currentVersion = 1

// NewJSONStore creates a new JSON-backed store at the given path.
// If the file doesn't exist, it will be created on first save.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:          path,
		conversations: make(map[string]*Record),
		messages:      make(map[string][]*MessageRecord),
		byTriple:      make(map[string]string),
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

// tripleKey builds the lookup key for a conversation triple.
func tripleKey(toyID, deviceID, sessionID string) string {
	return toyID + "|" + deviceID + "|" + sessionID
}

// GetOrCreate returns the conversation ID for the triple, creating the
// conversation when none exists.
func (s *JSONStore) GetOrCreate(ctx context.Context, toyID, deviceID, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tripleKey(toyID, deviceID, sessionID)
	if id, ok := s.byTriple[key]; ok {
		return id, nil
	}

	now := time.Now().UTC()
	record := &Record{
		ID:        uuid.NewString(),
		ToyID:     toyID,
		DeviceID:  deviceID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[record.ID] = record
	s.byTriple[key] = record.ID

	if err := s.save(); err != nil {
		return "", err
	}
	return record.ID, nil
}

// AppendMessage stores one turn and returns its message ID.
func (s *JSONStore) AppendMessage(ctx context.Context, conversationID, role, content string, meta SafetyMetadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.conversations[conversationID]
	if !ok {
		return "", ErrNotFound
	}

	msg := &MessageRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Safety:         meta,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	record.UpdatedAt = msg.CreatedAt

	if err := s.save(); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Messages returns a copy of the stored turns for a conversation.
func (s *JSONStore) Messages(conversationID string) []*MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	result := make([]*MessageRecord, len(msgs))
	copy(result, msgs)
	return result
}

// Count returns the total number of conversations.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// load reads the store file into memory.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var decoded storeData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("parse file: %w", err)
	}

	for _, c := range decoded.Conversations {
		s.conversations[c.ID] = c
		s.byTriple[tripleKey(c.ToyID, c.DeviceID, c.SessionID)] = c.ID
	}
	if decoded.Messages != nil {
		s.messages = decoded.Messages
	}
	return nil
}

// save writes the store to disk atomically via a temp file.
// Caller must hold the write lock.
func (s *JSONStore) save() error {
	conversations := make([]*Record, 0, len(s.conversations))
	for _, c := range s.conversations {
		conversations = append(conversations, c)
	}

	data := storeData{
		Version:       currentVersion,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Conversations: conversations,
		Messages:      s.messages,
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Verify JSONStore implements Recorder at compile time.
var _ Recorder = (*JSONStore)(nil)
