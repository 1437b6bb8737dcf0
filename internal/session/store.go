package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps sessions in memory; everything is lost on restart.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new session initialised with Defaults.
func (s *Store) Create() *Session {
	sess := Defaults(uuid.NewString(), s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess

	copied := *sess
	return &copied
}

// Get returns a copy of the session; callers mutate it and hand it to Save.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, exists := s.sessions[id]
	if !exists {
		return nil, false
	}
	copied := *sess
	return &copied, true
}

// Save overwrites the stored session with sess.
func (s *Store) Save(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	copied.LastSeen = s.now()
	s.sessions[sess.ID] = &copied
}

// Touch refreshes LastSeen without changing anything else.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastSeen = s.now()
	}
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Expire drops sessions idle for longer than ttl and reports how many went.
func (s *Store) Expire(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
