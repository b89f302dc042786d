package history

import (
	"sync"
	"time"
)

// Entry 是對話歷史中的一則訊息
type Entry struct {
	MessageID  string    `json:"messageId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Role       string    `json:"role"` // "user" or "assistant"
}

// Store keeps a bounded in-memory ring of recent entries per conversation.
// Nothing is persisted; the bound is enforced on every append.
type Store struct {
	mu    sync.Mutex
	rings map[string][]Entry
	limit int
}

// NewStore builds a store keeping at most limit entries per conversation.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{
		rings: make(map[string][]Entry),
		limit: limit,
	}
}

// Append commits entries to a conversation's ring, evicting the oldest
// entries beyond the limit.
func (s *Store) Append(contextID string, entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := append(s.rings[contextID], entries...)
	if overflow := len(ring) - s.limit; overflow > 0 {
		ring = ring[overflow:]
	}
	s.rings[contextID] = ring
}

// Recent returns up to n entries for the conversation, oldest first.
func (s *Store) Recent(contextID string, n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.rings[contextID]
	if n > 0 && len(ring) > n {
		ring = ring[len(ring)-n:]
	}
	out := make([]Entry, len(ring))
	copy(out, ring)
	return out
}

// Size returns the number of stored entries for a conversation.
func (s *Store) Size(contextID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rings[contextID])
}

// Drop discards a conversation's ring entirely.
func (s *Store) Drop(contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, contextID)
}
