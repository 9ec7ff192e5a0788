package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taskboard/internal/documents/models"
	"taskboard/internal/permission"
	"taskboard/pkg/platform/sentinel"
)

// backend is the surface both store implementations share.
type backend interface {
	Create(ctx context.Context, p permission.Principal, doc *models.Document) error
	Get(ctx context.Context, p permission.Principal, collectionID, id string) (*models.Document, error)
	Update(ctx context.Context, p permission.Principal, collectionID, id string, patch map[string]any, expectedVersion int64, now time.Time) (*models.Document, error)
	List(ctx context.Context, p permission.Principal, collectionID string, filters ...models.Filter) ([]*models.Document, error)
}

// contractSuite runs the same behavioural checks against any backend.
type contractSuite struct {
	suite.Suite
	store  backend
	author permission.Principal
	other  permission.Principal
	now    time.Time
}

func (s *contractSuite) init(store backend) {
	s.store = store
	s.author = permission.Principal{UserID: "author-1"}
	s.other = permission.Principal{UserID: "other-1"}
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
}

func (s *contractSuite) newDoc(collection string, data map[string]any, grants []permission.Grant) *models.Document {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	return &models.Document{
		ID:           uuid.NewString(),
		CollectionID: collection,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
		Permissions:  permission.Strings(grants),
		Data:         raw,
	}
}

func (s *contractSuite) TestCreateRequiresPrincipal() {
	err := s.store.Create(context.Background(), permission.Principal{}, s.newDoc("projects", map[string]any{"name": "x"}, nil))
	s.ErrorIs(err, sentinel.ErrForbidden)
}

func (s *contractSuite) TestCreateAndGet() {
	ctx := context.Background()
	doc := s.newDoc("projects", map[string]any{"name": "Apollo"}, nil)
	s.Require().NoError(s.store.Create(ctx, s.author, doc))

	got, err := s.store.Get(ctx, s.other, "projects", doc.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.JSONEq(`{"name":"Apollo"}`, string(got.Data))

	s.ErrorIs(s.store.Create(ctx, s.author, doc), sentinel.ErrConflict)
}

func (s *contractSuite) TestGetUnknownIsNotFound() {
	_, err := s.store.Get(context.Background(), s.author, "projects", uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestMalformedIDsAreInvalidQueries() {
	ctx := context.Background()
	_, err := s.store.Get(ctx, s.author, "projects", "bad id")
	s.ErrorIs(err, sentinel.ErrInvalidQuery)
	_, err = s.store.List(ctx, s.author, "tasks", models.Equal(models.FieldProjectID, "'; DROP TABLE documents;--"))
	s.ErrorIs(err, sentinel.ErrInvalidQuery)
	_, err = s.store.List(ctx, s.author, "tasks", models.Equal(models.FieldProjectID, ""))
	s.ErrorIs(err, sentinel.ErrInvalidQuery)
}

func (s *contractSuite) TestListFiltersByField() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.author, s.newDoc("tasks", map[string]any{"projectId": "p1"}, nil)))
	s.Require().NoError(s.store.Create(ctx, s.author, s.newDoc("tasks", map[string]any{"projectId": "p1"}, nil)))
	s.Require().NoError(s.store.Create(ctx, s.author, s.newDoc("tasks", map[string]any{"projectId": "p2"}, nil)))

	docs, err := s.store.List(ctx, s.author, "tasks", models.Equal(models.FieldProjectID, "p1"))
	s.Require().NoError(err)
	s.Len(docs, 2)

	docs, err = s.store.List(ctx, s.author, "tasks", models.Equal(models.FieldProjectID, "p3"))
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *contractSuite) TestUpdateMergesAndBumpsVersion() {
	ctx := context.Background()
	doc := s.newDoc("tasks", map[string]any{"name": "Ship", "status": "to-do"}, nil)
	s.Require().NoError(s.store.Create(ctx, s.author, doc))

	later := s.now.Add(time.Minute)
	updated, err := s.store.Update(ctx, s.other, "tasks", doc.ID, map[string]any{"status": "completed"}, 0, later)
	s.Require().NoError(err)
	s.Equal(int64(2), updated.Version)
	s.True(updated.UpdatedAt.Equal(later))
	s.JSONEq(`{"name":"Ship","status":"completed"}`, string(updated.Data))
}

func (s *contractSuite) TestUpdateRejectsStaleVersion() {
	ctx := context.Background()
	doc := s.newDoc("tasks", map[string]any{"status": "to-do"}, nil)
	s.Require().NoError(s.store.Create(ctx, s.author, doc))

	_, err := s.store.Update(ctx, s.author, "tasks", doc.ID, map[string]any{"status": "completed"}, 1, s.now)
	s.Require().NoError(err)
	_, err = s.store.Update(ctx, s.author, "tasks", doc.ID, map[string]any{"status": "to-do"}, 1, s.now)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *contractSuite) TestCommentGrantsScopeWrites() {
	ctx := context.Background()
	doc := s.newDoc("comments", map[string]any{"commentText": "looks good to me"}, permission.ForComment(s.author.UserID))
	s.Require().NoError(s.store.Create(ctx, s.author, doc))

	_, err := s.store.Get(ctx, s.other, "comments", doc.ID)
	s.Require().NoError(err, "any authenticated user may read")

	_, err = s.store.Update(ctx, s.other, "comments", doc.ID, map[string]any{"commentText": "hijacked text"}, 0, s.now)
	s.ErrorIs(err, sentinel.ErrForbidden)

	_, err = s.store.Update(ctx, s.author, "comments", doc.ID, map[string]any{"commentText": "edited by author"}, 0, s.now)
	s.NoError(err)

	_, err = s.store.Update(ctx, permission.Principal{Elevated: true}, "comments", doc.ID, map[string]any{"commentText": "edited by admin"}, 0, s.now)
	s.NoError(err)
}

func (s *contractSuite) TestPrivateDocumentsAreHiddenFromOthers() {
	ctx := context.Background()
	grants := []permission.Grant{{Action: permission.ActionRead, Role: permission.RoleUser(s.author.UserID)}}
	doc := s.newDoc("comments", map[string]any{"taskId": "t1"}, grants)
	s.Require().NoError(s.store.Create(ctx, s.author, doc))

	_, err := s.store.Get(ctx, s.other, "comments", doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	docs, err := s.store.List(ctx, s.other, "comments", models.Equal(models.FieldTaskID, "t1"))
	s.Require().NoError(err)
	s.Empty(docs)

	docs, err = s.store.List(ctx, s.author, "comments", models.Equal(models.FieldTaskID, "t1"))
	s.Require().NoError(err)
	s.Len(docs, 1)
}
