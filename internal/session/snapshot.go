package session

import (
	"sync"

	"github.com/duelgrid/duel-backend/internal/engine"
)

// SnapshotStore keeps, per session, the last state value that was
// broadcast. It is the diff baseline for the next cycle: absence means no
// broadcast has completed yet.
//
// The mutex only makes the map safe for concurrent use by different
// sessions. The read-diff-overwrite ordering within one session is the
// session actor's responsibility; the store does not serialize it.
type SnapshotStore struct {
	mu   sync.RWMutex
	last map[string]engine.State
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{last: make(map[string]engine.State)}
}

func (s *SnapshotStore) Get(sessionID string) (engine.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.last[sessionID]
	return st, ok
}

func (s *SnapshotStore) Put(sessionID string, st engine.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[sessionID] = st
}

// Drop releases the entry when a session is removed.
func (s *SnapshotStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, sessionID)
}
