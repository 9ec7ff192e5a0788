// Package store holds the blob store backends. A store keeps a file's
// metadata together with its encoded payload and knows nothing about codecs.
package store

import (
	"context"
	"sort"
	"sync"

	"taskboard/internal/blobs/models"
	"taskboard/pkg/platform/sentinel"
)

type entry struct {
	file    *models.File
	payload []byte
}

// InMemoryStore keeps blobs per bucket in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]entry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string]map[string]entry)}
}

func (s *InMemoryStore) Put(_ context.Context, f *models.File, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[f.BucketID]
	if !ok {
		bucket = make(map[string]entry)
		s.buckets[f.BucketID] = bucket
	}
	if _, exists := bucket[f.ID]; exists {
		return sentinel.ErrConflict
	}
	bucket[f.ID] = entry{file: f.Clone(), payload: append([]byte(nil), payload...)}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, bucketID, id string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.buckets[bucketID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.file.Clone(), nil
}

func (s *InMemoryStore) Read(_ context.Context, bucketID, id string) (*models.File, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.buckets[bucketID][id]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	return e.file.Clone(), append([]byte(nil), e.payload...), nil
}

func (s *InMemoryStore) Delete(_ context.Context, bucketID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucketID][id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.buckets[bucketID], id)
	return nil
}

// List returns the bucket's files, newest first.
func (s *InMemoryStore) List(_ context.Context, bucketID string) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.File, 0, len(s.buckets[bucketID]))
	for _, e := range s.buckets[bucketID] {
		out = append(out, e.file.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
