// Package sessions provides in-memory per-user turn history for multi-turn
// referent resolution.
package sessions

import (
	"sync"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// DefaultHistoryLimit bounds how many turns are kept per user.
const DefaultHistoryLimit = 20

// MemoryTurnStore is a thread-safe in-memory turn history, bounded per
// user. The newest turn is last; oldest turns are dropped at the cap.
type MemoryTurnStore struct {
	mu    sync.RWMutex
	turns map[string][]models.SessionTurn // key: user ID
	limit int
}

// NewMemoryTurnStore creates a turn store. limit <= 0 uses
// DefaultHistoryLimit.
func NewMemoryTurnStore(limit int) *MemoryTurnStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryTurnStore{
		turns: make(map[string][]models.SessionTurn),
		limit: limit,
	}
}

// Append records one turn for the user, dropping the oldest past the cap.
func (s *MemoryTurnStore) Append(userID string, turn models.SessionTurn) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.turns[userID], turn)
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}
	s.turns[userID] = history
}

// History returns a copy of the user's turns, oldest first.
func (s *MemoryTurnStore) History(userID string) []models.SessionTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.turns[userID]
	out := make([]models.SessionTurn, len(history))
	copy(out, history)
	return out
}

// Clear drops the user's history.
func (s *MemoryTurnStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
}
