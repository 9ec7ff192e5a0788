// Package service is the blob storage layer: uploads, downloads and previews
// of binary objects addressed by generated ids.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/internal/audit"
	"taskboard/internal/blobs/codec"
	"taskboard/internal/blobs/models"
	"taskboard/internal/blobs/preview"
	idmodels "taskboard/internal/identity/models"
	"taskboard/internal/platform/metrics"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type BlobStore interface {
	Put(ctx context.Context, f *models.File, payload []byte) error
	Get(ctx context.Context, bucketID, id string) (*models.File, error)
	Read(ctx context.Context, bucketID, id string) (*models.File, []byte, error)
	Delete(ctx context.Context, bucketID, id string) error
	List(ctx context.Context, bucketID string) ([]*models.File, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Default upload limits, applied by New to any Limits field <= 0.
const (
	DefaultMaxUploadBytes   int64 = 30 << 20
	DefaultMaxBufferedBytes int64 = 5 << 20
)

// Limits bound what an upload may carry. A field <= 0 takes its default.
type Limits struct {
	// MaxUploadBytes caps uploads of declared size.
	MaxUploadBytes int64
	// MaxBufferedBytes caps uploads of unknown size, which are held in memory.
	MaxBufferedBytes int64
}

// Service implements the blob storage layer over one bucket.
type Service struct {
	store          BlobStore
	bucketID       string
	limits         Limits
	previewWidth   int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithPreviewWidth sets the width used when Preview is called with width <= 0.
func WithPreviewWidth(width int) Option {
	return func(s *Service) {
		if width > 0 {
			s.previewWidth = width
		}
	}
}

func New(store BlobStore, bucketID string, limits Limits, opts ...Option) *Service {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if limits.MaxBufferedBytes <= 0 {
		limits.MaxBufferedBytes = min(DefaultMaxBufferedBytes, limits.MaxUploadBytes)
	}
	s := &Service{
		store:        store,
		bucketID:     bucketID,
		limits:       limits,
		previewWidth: preview.DefaultWidth,
		logger:       slog.Default(),
		tracer:       otel.Tracer("taskboard/blobs"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores one object under a generated id. A declared size is streamed
// with its length enforced; an unknown size is buffered up to a smaller cap.
func (s *Service) Upload(ctx context.Context, h *idmodels.Handle, in models.UploadInput) (file *models.File, err error) {
	ctx, end := s.begin(ctx, "Upload", attribute.Int64("file.declared_size", in.Size))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	if in.Reader == nil {
		return nil, fileViolation("is required")
	}

	hasher := codec.NewHasher()
	var data []byte
	if in.Size >= 0 {
		data, err = readKnownSize(io.TeeReader(in.Reader, hasher), in.Size, s.limits.MaxUploadBytes)
	} else {
		data, err = readBuffered(io.TeeReader(in.Reader, hasher), s.limits.MaxBufferedBytes)
	}
	if err != nil {
		return nil, err
	}

	mimeType := detectMIME(data, in.Filename)
	payload, compression, err := codec.Encode(data, mimeType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode upload")
	}
	name := filepath.Base(in.Filename)
	if name == "." || name == "/" {
		name = ""
	}
	file = &models.File{
		ID:          uuid.NewString(),
		BucketID:    s.bucketID,
		Name:        name,
		MimeType:    mimeType,
		Size:        int64(len(data)),
		StoredSize:  int64(len(payload)),
		Checksum:    hasher.Sum(),
		Compression: string(compression),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Put(ctx, file, payload); err != nil {
		return nil, translate(err, "failed to store file")
	}
	s.metrics.AddBlobBytes(file.StoredSize)
	s.logAudit(ctx, audit.EventFileUploaded, "user_id", h.UserID(), "resource_id", file.ID)
	return file, nil
}

func readKnownSize(r io.Reader, size, limit int64) ([]byte, error) {
	if size > limit {
		return nil, fileViolation(fmt.Sprintf("exceeds the %d byte upload limit", limit))
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fileViolation(fmt.Sprintf("ended before the declared %d bytes", size))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	var probe [1]byte
	if n, _ := r.Read(probe[:]); n > 0 {
		return nil, fileViolation(fmt.Sprintf("is longer than the declared %d bytes", size))
	}
	return data, nil
}

func readBuffered(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	if n > limit {
		return nil, fileViolation(fmt.Sprintf("exceeds the %d byte limit for uploads of unknown size", limit))
	}
	return buf.Bytes(), nil
}

// detectMIME sniffs content and falls back to the file extension when
// sniffing only finds a generic type.
func detectMIME(data []byte, filename string) string {
	sniffed := http.DetectContentType(data)
	if sniffed != "application/octet-stream" && sniffed != "text/plain; charset=utf-8" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return sniffed
}

// Download returns the original bytes of a file.
func (s *Service) Download(ctx context.Context, h *idmodels.Handle, id string) (file *models.File, data []byte, err error) {
	ctx, end := s.begin(ctx, "Download", attribute.String("file.id", id))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, nil, err
	}
	return s.read(ctx, id)
}

// Preview returns a JPEG of the file scaled to width (the default width when width <= 0).
func (s *Service) Preview(ctx context.Context, h *idmodels.Handle, id string, width int) (out []byte, err error) {
	if width <= 0 {
		width = s.previewWidth
	}
	ctx, end := s.begin(ctx, "Preview", attribute.String("file.id", id), attribute.Int("preview.width", width))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	_, data, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err = preview.Render(data, width)
	if err != nil {
		if errors.Is(err, preview.ErrUnsupported) {
			return nil, fileViolation("is not a previewable image")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render preview")
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, h *idmodels.Handle, id string) (err error) {
	ctx, end := s.begin(ctx, "Delete", attribute.String("file.id", id))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.bucketID, id); err != nil {
		return translate(err, "failed to delete file")
	}
	s.logAudit(ctx, audit.EventFileDeleted, "user_id", h.UserID(), "resource_id", id)
	return nil
}

// List returns the bucket's files, newest first.
func (s *Service) List(ctx context.Context, h *idmodels.Handle) (files []*models.File, err error) {
	ctx, end := s.begin(ctx, "List")
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	files, err = s.store.List(ctx, s.bucketID)
	if err != nil {
		return nil, translate(err, "failed to list files")
	}
	return files, nil
}

func (s *Service) Get(ctx context.Context, h *idmodels.Handle, id string) (file *models.File, err error) {
	ctx, end := s.begin(ctx, "Get", attribute.String("file.id", id))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	file, err = s.store.Get(ctx, s.bucketID, id)
	if err != nil {
		return nil, translate(err, "failed to load file")
	}
	return file, nil
}

func (s *Service) read(ctx context.Context, id string) (*models.File, []byte, error) {
	file, payload, err := s.store.Read(ctx, s.bucketID, id)
	if err != nil {
		return nil, nil, translate(err, "failed to read file")
	}
	compression, err := codec.Parse(file.Compression)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeStore, "stored file is malformed")
	}
	data, err := codec.Decode(payload, compression, file.Size)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeStore, "stored file is malformed")
	}
	if sum := codec.Checksum(data); sum != file.Checksum {
		s.logger.ErrorContext(ctx, "stored file failed checksum verification",
			"file_id", id,
			"expected", file.Checksum,
			"actual", sum,
		)
		return nil, nil, dErrors.New(dErrors.CodeStore, "stored file is corrupt")
	}
	return file, data, nil
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "blobs."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		s.metrics.ObserveBlob(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attrs ...any) {
	var emitter audit.Emitter
	if s.auditPublisher != nil {
		emitter = s.auditPublisher
	}
	audit.Log(ctx, s.logger, emitter, event, attrs...)
}

func requireHandle(h *idmodels.Handle) error {
	if !h.Valid() {
		return dErrors.New(dErrors.CodeNoSession, "No session")
	}
	return nil
}

func fileViolation(msg string) error {
	return dErrors.NewValidation("invalid upload", dErrors.FieldViolation{Field: "file", Message: msg})
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStore, msg)
	}
}
