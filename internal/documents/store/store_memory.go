package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/documents/models"
	"taskboard/internal/permission"
	"taskboard/pkg/platform/sentinel"
)

// InMemoryStore keeps documents per collection behind a single RWMutex.
type InMemoryStore struct {
	mu          sync.RWMutex
	databaseID  string
	collections map[string]map[string]*models.Document
}

func NewInMemory(databaseID string) *InMemoryStore {
	return &InMemoryStore{
		databaseID:  databaseID,
		collections: make(map[string]map[string]*models.Document),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p permission.Principal, doc *models.Document) error {
	if !authenticated(p) {
		return sentinel.ErrForbidden
	}
	if err := validateKey(doc.CollectionID, doc.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[doc.CollectionID]
	if !ok {
		coll = make(map[string]*models.Document)
		s.collections[doc.CollectionID] = coll
	}
	if _, exists := coll[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	doc.DatabaseID = s.databaseID
	if doc.Version == 0 {
		doc.Version = 1
	}
	coll[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, p permission.Principal, collectionID, id string) (*models.Document, error) {
	if err := validateKey(collectionID, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collectionID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	readable, err := allows(doc, permission.ActionRead, p)
	if err != nil {
		return nil, err
	}
	if !readable {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

// Update merges patch into the document's data. A positive expectedVersion
// must match the stored version or the update fails with sentinel.ErrConflict.
func (s *InMemoryStore) Update(_ context.Context, p permission.Principal, collectionID, id string, patch map[string]any, expectedVersion int64, now time.Time) (*models.Document, error) {
	if err := validateKey(collectionID, id); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collectionID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if readable, err := allows(doc, permission.ActionRead, p); err != nil {
		return nil, err
	} else if !readable {
		return nil, sentinel.ErrNotFound
	}
	writable, err := allows(doc, permission.ActionUpdate, p)
	if err != nil {
		return nil, err
	}
	if !writable {
		return nil, sentinel.ErrForbidden
	}
	if expectedVersion > 0 && doc.Version != expectedVersion {
		return nil, fmt.Errorf("%w: version %d, expected %d", sentinel.ErrConflict, doc.Version, expectedVersion)
	}
	data, err := mergeData(doc.Data, patch)
	if err != nil {
		return nil, err
	}
	doc.Data = data
	doc.Version++
	doc.UpdatedAt = now
	return doc.Clone(), nil
}

// List returns readable documents matching every filter. Order is unspecified.
func (s *InMemoryStore) List(_ context.Context, p permission.Principal, collectionID string, filters ...models.Filter) ([]*models.Document, error) {
	if !models.ValidID(collectionID) {
		return nil, fmt.Errorf("%w: collection %q", sentinel.ErrInvalidQuery, collectionID)
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0)
	for _, doc := range s.collections[collectionID] {
		readable, err := allows(doc, permission.ActionRead, p)
		if err != nil {
			return nil, err
		}
		if readable && matches(doc, filters) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}
