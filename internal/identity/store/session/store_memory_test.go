package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"taskboard/internal/identity/models"
	"taskboard/pkg/platform/sentinel"
)

type InMemorySessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
	ctx   context.Context
}

func TestInMemorySessionStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionStoreSuite))
}

func (s *InMemorySessionStoreSuite) SetupTest() {
	s.store = NewInMemorySessionStore()
	s.ctx = context.Background()
}

func activeSession(id string) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:         id,
		UserID:     "u1",
		Status:     models.SessionStatusActive,
		DeviceName: "Firefox on Linux",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func (s *InMemorySessionStoreSuite) TestCreateFind() {
	s.Require().NoError(s.store.Create(s.ctx, activeSession("s1")))
	s.ErrorIs(s.store.Create(s.ctx, activeSession("s1")), sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal("u1", got.UserID)

	_, err = s.store.FindByID(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestExecute() {
	s.Require().NoError(s.store.Create(s.ctx, activeSession("s1")))
	now := time.Now()

	s.Run("validate error aborts the write", func() {
		boom := errors.New("boom")
		_, err := s.store.Execute(s.ctx, "s1",
			func(*models.Session) error { return boom },
			func(sess *models.Session) { sess.ApplyRevocation(now) },
		)
		s.ErrorIs(err, boom)
		got, _ := s.store.FindByID(s.ctx, "s1")
		s.Equal(models.SessionStatusActive, got.Status)
	})

	s.Run("mutation is persisted", func() {
		updated, err := s.store.Execute(s.ctx, "s1",
			func(sess *models.Session) error { return sess.CanRevoke() },
			func(sess *models.Session) { sess.ApplyRevocation(now) },
		)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusRevoked, updated.Status)
		got, _ := s.store.FindByID(s.ctx, "s1")
		s.Equal(models.SessionStatusRevoked, got.Status)
	})

	s.Run("missing session", func() {
		_, err := s.store.Execute(s.ctx, "nope",
			func(*models.Session) error { return nil },
			func(*models.Session) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySessionStoreSuite) TestConcurrentRevocationAppliesOnce() {
	s.Require().NoError(s.store.Create(s.ctx, activeSession("s1")))
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, "s1",
				func(sess *models.Session) error { return sess.CanRevoke() },
				func(sess *models.Session) { sess.ApplyRevocation(time.Now()) },
			)
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, applied)
}
