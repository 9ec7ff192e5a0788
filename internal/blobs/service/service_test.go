package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taskboard/internal/blobs/models"
	"taskboard/internal/blobs/service/mocks"
	"taskboard/internal/blobs/store"
	idmodels "taskboard/internal/identity/models"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
	store   *store.InMemoryStore
	handle  *idmodels.Handle
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, "images", Limits{MaxUploadBytes: 1 << 20, MaxBufferedBytes: 64 << 10},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.handle = idmodels.NewSessionHandle("u1", "s1")
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func (s *ServiceSuite) TestOperationsRequireASession() {
	_, err := s.service.Upload(s.ctx, nil, models.UploadInput{Reader: strings.NewReader("x"), Size: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	_, err = s.service.List(s.ctx, idmodels.NewSessionHandle("", ""))
	s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
}

func (s *ServiceSuite) TestUploadKnownSizeRoundtrip() {
	text := strings.Repeat("meeting notes line\n", 200)
	file, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{
		Reader:   strings.NewReader(text),
		Size:     int64(len(text)),
		Filename: "notes.txt",
	})
	s.Require().NoError(err)
	s.Equal("images", file.BucketID)
	s.Equal("notes.txt", file.Name)
	s.Equal(int64(len(text)), file.Size)
	s.Equal("zstd", file.Compression)
	s.Less(file.StoredSize, file.Size)
	s.Len(file.Checksum, 64)

	_, data, err := s.service.Download(s.ctx, s.handle, file.ID)
	s.Require().NoError(err)
	s.Equal(text, string(data))
}

func (s *ServiceSuite) TestUploadKnownSizeEnforcesLength() {
	s.Run("declared size over the limit is rejected before reading", func() {
		r := iotest.ErrReader(errors.New("must not be read"))
		_, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: r, Size: 2 << 20})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("short body", func() {
		_, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("abc"), Size: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("long body", func() {
		_, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("abcdef"), Size: 3})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUploadUnknownSizeIsBufferedUpToCap() {
	small := pngBytes(10, 10)
	file, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: bytes.NewReader(small), Size: models.UnknownSize})
	s.Require().NoError(err)
	s.Equal("image/png", file.MimeType)
	s.Equal("none", file.Compression)

	big := bytes.Repeat([]byte{'a'}, 64<<10+1)
	_, err = s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: bytes.NewReader(big), Size: models.UnknownSize})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestZeroLimitsTakeDefaults() {
	svc := New(store.NewInMemory(), "images", Limits{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	s.Run("huge declared size is rejected before allocating", func() {
		_, err := svc.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("hi"), Size: 1 << 62})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("small uploads succeed with either strategy", func() {
		_, err := svc.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("hello"), Size: 5})
		s.Require().NoError(err)
		_, err = svc.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("hello"), Size: models.UnknownSize})
		s.Require().NoError(err)
	})

	s.Run("unknown size stays capped", func() {
		r := io.LimitReader(zeroReader{}, DefaultMaxBufferedBytes+1)
		_, err := svc.Upload(s.ctx, s.handle, models.UploadInput{Reader: r, Size: models.UnknownSize})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func (s *ServiceSuite) TestPreview() {
	file, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: bytes.NewReader(pngBytes(400, 200)), Size: models.UnknownSize, Filename: "chart.png"})
	s.Require().NoError(err)

	out, err := s.service.Preview(s.ctx, s.handle, file.ID, 0)
	s.Require().NoError(err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	s.Require().NoError(err)
	s.Equal(200, cfg.Width)
	s.Equal(100, cfg.Height)

	text, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("not an image"), Size: 12})
	s.Require().NoError(err)
	_, err = s.service.Preview(s.ctx, s.handle, text.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestListGetDelete() {
	for i := 0; i < 3; i++ {
		_, err := s.service.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("payload"), Size: 7})
		s.Require().NoError(err)
	}
	files, err := s.service.List(s.ctx, s.handle)
	s.Require().NoError(err)
	s.Len(files, 3)

	got, err := s.service.Get(s.ctx, s.handle, files[0].ID)
	s.Require().NoError(err)
	s.Equal(files[0].Checksum, got.Checksum)

	s.Require().NoError(s.service.Delete(s.ctx, s.handle, files[0].ID))
	_, err = s.service.Get(s.ctx, s.handle, files[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.service.Delete(s.ctx, s.handle, files[0].ID), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStoreFailuresSurfaceAsStoreErrors() {
	ctrl := gomock.NewController(s.T())
	mockStore := mocks.NewMockBlobStore(ctrl)
	svc := New(mockStore, "images", Limits{MaxUploadBytes: 1024, MaxBufferedBytes: 1024},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	mockStore.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	_, err := svc.Upload(s.ctx, s.handle, models.UploadInput{Reader: strings.NewReader("abc"), Size: 3})
	s.True(dErrors.HasCode(err, dErrors.CodeStore))
	s.Contains(err.Error(), "disk full")

	mockStore.EXPECT().List(gomock.Any(), "images").Return(nil, errors.New("io error"))
	_, err = svc.List(s.ctx, s.handle)
	s.True(dErrors.HasCode(err, dErrors.CodeStore))
}

func (s *ServiceSuite) TestCorruptPayloadIsDetected() {
	ctrl := gomock.NewController(s.T())
	mockStore := mocks.NewMockBlobStore(ctrl)
	svc := New(mockStore, "images", Limits{MaxUploadBytes: 1024, MaxBufferedBytes: 1024},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	mockStore.EXPECT().Read(gomock.Any(), "images", "f1").Return(
		&models.File{ID: "f1", Size: 3, Compression: "none", Checksum: "deadbeef"}, []byte("abc"), nil)
	_, _, err := svc.Download(s.ctx, s.handle, "f1")
	s.True(dErrors.HasCode(err, dErrors.CodeStore))
}
