package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"Hermes_RAG/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// State is the conversational state of one session: the role-tagged chat
// history plus the bounded session entities. The orchestration core is
// stateless; this store is the only place session state lives between
// requests.
type State struct {
	ChatHistory     []models.ChatMessage `json:"chat_history"`
	SessionEntities []string             `json:"session_entities"`
}

// Store defines the interface for session state persistence. Get returns
// an empty state for an unknown session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, state *State) error
}

// NewSessionID allocates a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// RedisStore is an implementation of Store backed by Redis with a
// per-session TTL. Saving a session refreshes its TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "rag:session:" + sessionID
}

// Get loads the session state, returning an empty state when the key is
// missing or expired.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*State, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save stores the session state and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// InMemoryStore is a thread-safe, in-memory implementation of Store. It
// is used in tests and as the fallback when Redis is disabled; entries
// never expire.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewInMemoryStore creates a new empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*State)}
}

// Get loads the session state, returning an empty state for unknown ids.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return &State{}, nil
	}
	copied := &State{
		ChatHistory:     append([]models.ChatMessage(nil), state.ChatHistory...),
		SessionEntities: append([]string(nil), state.SessionEntities...),
	}
	return copied, nil
}

// Save stores the session state.
func (s *InMemoryStore) Save(ctx context.Context, sessionID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = &State{
		ChatHistory:     append([]models.ChatMessage(nil), state.ChatHistory...),
		SessionEntities: append([]string(nil), state.SessionEntities...),
	}
	return nil
}

// compile-time checks to ensure both implementations satisfy Store
var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*InMemoryStore)(nil)
)
