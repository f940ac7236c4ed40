package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Each session has its own
// lock; the map lock is held only for lookups.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*memorySession
	maxExchanges int
}

type memorySession struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func NewMemoryStore(maxExchanges int) *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*memorySession),
		maxExchanges: normalizeMax(maxExchanges),
	}
}

func (s *MemoryStore) CreateSession(context.Context) (string, error) {
	id := uuid.NewString()
	s.session(id, true)
	return id, nil
}

func (s *MemoryStore) History(_ context.Context, id string) (string, error) {
	sess := s.session(id, false)
	if sess == nil {
		return "", nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return formatHistory(sess.exchanges), nil
}

func (s *MemoryStore) Append(_ context.Context, id, query, answer string) error {
	sess := s.session(id, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.exchanges = append(sess.exchanges, Exchange{Query: query, Answer: answer})
	if over := len(sess.exchanges) - s.maxExchanges; over > 0 {
		sess.exchanges = append([]Exchange(nil), sess.exchanges[over:]...)
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	sessionsActive.Dec()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) session(id string, create bool) *memorySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok && create {
		sess = &memorySession{}
		s.sessions[id] = sess
		sessionsActive.Inc()
	}
	return sess
}
