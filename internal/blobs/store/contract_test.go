package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"taskboard/internal/blobs/models"
	"taskboard/pkg/platform/sentinel"
)

type backend interface {
	Put(ctx context.Context, f *models.File, payload []byte) error
	Get(ctx context.Context, bucketID, id string) (*models.File, error)
	Read(ctx context.Context, bucketID, id string) (*models.File, []byte, error)
	Delete(ctx context.Context, bucketID, id string) error
	List(ctx context.Context, bucketID string) ([]*models.File, error)
}

type contractSuite struct {
	suite.Suite
	store backend
	now   time.Time
}

func (s *contractSuite) file(id string, created time.Time) *models.File {
	return &models.File{
		ID:          id,
		BucketID:    "images",
		Name:        id + ".png",
		MimeType:    "image/png",
		Size:        3,
		StoredSize:  3,
		Checksum:    "abc",
		Compression: "none",
		CreatedAt:   created,
	}
}

func (s *contractSuite) TestPutReadDelete() {
	ctx := context.Background()
	f := s.file("f1", s.now)
	s.Require().NoError(s.store.Put(ctx, f, []byte{1, 2, 3}))
	s.ErrorIs(s.store.Put(ctx, f, []byte{1, 2, 3}), sentinel.ErrConflict)

	got, payload, err := s.store.Read(ctx, "images", "f1")
	s.Require().NoError(err)
	s.Equal([]byte{1, 2, 3}, payload)
	s.Equal("f1.png", got.Name)
	s.True(got.CreatedAt.Equal(s.now))

	meta, err := s.store.Get(ctx, "images", "f1")
	s.Require().NoError(err)
	s.Equal(f.Checksum, meta.Checksum)

	s.Require().NoError(s.store.Delete(ctx, "images", "f1"))
	_, err = s.store.Get(ctx, "images", "f1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, "images", "f1"), sentinel.ErrNotFound)
}

func (s *contractSuite) TestListIsNewestFirstAndBucketScoped() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.file("old", s.now), []byte{1}))
	s.Require().NoError(s.store.Put(ctx, s.file("new", s.now.Add(time.Second)), []byte{1}))
	other := s.file("elsewhere", s.now)
	other.BucketID = "docs"
	s.Require().NoError(s.store.Put(ctx, other, []byte{1}))

	files, err := s.store.List(ctx, "images")
	s.Require().NoError(err)
	s.Require().Len(files, 2)
	s.Equal("new", files[0].ID)
	s.Equal("old", files[1].ID)

	files, err = s.store.List(ctx, "empty")
	s.Require().NoError(err)
	s.Empty(files)
}
