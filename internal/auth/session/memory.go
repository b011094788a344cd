package session

import (
	"context"
	"sync"
	"time"

	"travelplan_backend/platform/httpkit"
	"travelplan_backend/platform/logger"
)

// MemoryStore keeps sessions in process. Expired entries are rejected on
// lookup and removed by Run.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
	log      *logger.Logger
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
		log:      log,
	}
}

func (s *MemoryStore) Create(_ context.Context, principal httpkit.Principal, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		return Session{}, ErrInvalidTTL
	}
	id, err := newID()
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{ID: id, Principal: principal, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	s.mu.Lock()
	s.sessions[hashID(id)] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) Resolve(_ context.Context, sessionID string) (httpkit.Principal, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[hashID(sessionID)]
	s.mu.RUnlock()
	if !ok || !s.now().Before(sess.ExpiresAt) {
		return httpkit.Principal{}, false, nil
	}
	return sess.Principal, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, hashID(sessionID))
	s.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 && s.log != nil {
				s.log.Debug("expired sessions swept", "count", removed)
			}
		}
	}
}

var _ Store = (*MemoryStore)(nil)
var _ httpkit.SessionResolver = (*MemoryStore)(nil)
