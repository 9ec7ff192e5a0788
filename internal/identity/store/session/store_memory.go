package session

import (
	"context"
	"sync"

	"taskboard/internal/identity/models"
	"taskboard/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map guarded by one mutex.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// Execute runs validate then mutate on one session under the store lock and
// persists the result. A validate error aborts without writing.
func (s *InMemorySessionStore) Execute(
	_ context.Context,
	id string,
	validate func(*models.Session) error,
	mutate func(*models.Session),
) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	s.sessions[id] = &cp
	out := cp
	return &out, nil
}
