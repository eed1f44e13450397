package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore is an in-memory session store used for tests and dev fallbacks.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewSessionStore constructs an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*domain.Session{}}
}

// Save inserts or replaces a session keyed by id.
func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("cannot save session without an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get loads a session by id.
func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", versioning.ErrNotFound, id)
	}
	return session.Clone(), nil
}

// List returns all sessions, newest first.
func (s *SessionStore) List(_ context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
