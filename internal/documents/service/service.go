// Package service is the document access layer: typed operations over
// projects, tasks and comments, each acting through a caller's handle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/internal/audit"
	"taskboard/internal/documents/models"
	idmodels "taskboard/internal/identity/models"
	"taskboard/internal/permission"
	"taskboard/internal/platform/metrics"
	"taskboard/internal/validation"
	"taskboard/internal/workflow"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type DocumentStore interface {
	Create(ctx context.Context, p permission.Principal, doc *models.Document) error
	Get(ctx context.Context, p permission.Principal, collectionID, id string) (*models.Document, error)
	Update(ctx context.Context, p permission.Principal, collectionID, id string, patch map[string]any, expectedVersion int64, now time.Time) (*models.Document, error)
	List(ctx context.Context, p permission.Principal, collectionID string, filters ...models.Filter) ([]*models.Document, error)
}

// UserResolver re-reads the subject of a session handle.
type UserResolver interface {
	ResolveUser(ctx context.Context, h *idmodels.Handle) (*idmodels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Collections names the store collections each document kind lives in.
type Collections struct {
	Projects string
	Tasks    string
	Comments string
}

// Service implements the document access layer.
type Service struct {
	store          DocumentStore
	users          UserResolver
	collections    Collections
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

func New(store DocumentStore, users UserResolver, collections Collections, opts ...Option) *Service {
	s := &Service{
		store:       store,
		users:       users,
		collections: collections,
		logger:      slog.Default(),
		tracer:      otel.Tracer("taskboard/documents"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListProjects(ctx context.Context, h *idmodels.Handle) (projects []*models.Project, err error) {
	ctx, end := s.begin(ctx, "ListProjects")
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, h.Principal(), s.collections.Projects)
	if err != nil {
		return nil, translate(err, "failed to list projects")
	}
	return decodeAll(docs, models.DecodeProject)
}

func (s *Service) GetProject(ctx context.Context, h *idmodels.Handle, id string) (project *models.Project, err error) {
	ctx, end := s.begin(ctx, "GetProject", attribute.String("project.id", id))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, h, s.collections.Projects, id, "project")
	if err != nil {
		return nil, err
	}
	return decodeOne(doc, models.DecodeProject)
}

// CreateProject seeds a project. Elevated handles use it for admin seeding.
func (s *Service) CreateProject(ctx context.Context, h *idmodels.Handle, in models.ProjectInput) (project *models.Project, err error) {
	ctx, end := s.begin(ctx, "CreateProject")
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, dErrors.NewValidation("invalid project", dErrors.FieldViolation{Field: "name", Message: "is required"})
	}
	data, err := models.EncodeProject(in)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode project")
	}
	doc, err := s.create(ctx, h, s.collections.Projects, permission.KindProject, data)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventProjectCreated, "user_id", h.UserID(), "resource_id", doc.ID)
	return decodeOne(doc, models.DecodeProject)
}

// ListTasksByProject returns the readable tasks whose projectId equals projectID.
// A malformed id fails with CodeQuery.
func (s *Service) ListTasksByProject(ctx context.Context, h *idmodels.Handle, projectID string) (tasks []*models.Task, err error) {
	ctx, end := s.begin(ctx, "ListTasksByProject", attribute.String("project.id", projectID))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, h.Principal(), s.collections.Tasks, models.Equal(models.FieldProjectID, projectID))
	if err != nil {
		return nil, translate(err, "failed to list tasks")
	}
	return decodeAll(docs, models.DecodeTask)
}

func (s *Service) GetTask(ctx context.Context, h *idmodels.Handle, id string) (task *models.Task, err error) {
	ctx, end := s.begin(ctx, "GetTask", attribute.String("task.id", id))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, h, s.collections.Tasks, id, "task")
	if err != nil {
		return nil, err
	}
	return decodeOne(doc, models.DecodeTask)
}

// CreateTask attaches a new task to an existing project. An empty status
// defaults to to-do; anything outside the status set is rejected.
func (s *Service) CreateTask(ctx context.Context, h *idmodels.Handle, projectID string, in models.TaskInput) (task *models.Task, err error) {
	ctx, end := s.begin(ctx, "CreateTask", attribute.String("project.id", projectID))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	status, err := workflow.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, h, s.collections.Projects, projectID, "project"); err != nil {
		return nil, err
	}
	data, err := models.EncodeTask(in, status, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode task")
	}
	doc, err := s.create(ctx, h, s.collections.Tasks, permission.KindTask, data)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventTaskCreated, "user_id", h.UserID(), "resource_id", doc.ID)
	return decodeOne(doc, models.DecodeTask)
}

// UpdateTaskStatus replaces a task's status. Concurrent updates resolve last write wins.
func (s *Service) UpdateTaskStatus(ctx context.Context, h *idmodels.Handle, taskID, status string) (*models.Task, error) {
	return s.updateStatus(ctx, h, taskID, status, 0)
}

// UpdateTaskStatusIfVersion is UpdateTaskStatus guarded by the version the
// caller last read. A stale version fails with CodeConflict.
func (s *Service) UpdateTaskStatusIfVersion(ctx context.Context, h *idmodels.Handle, taskID, status string, version int64) (*models.Task, error) {
	if version <= 0 {
		return nil, dErrors.NewValidation("invalid version", dErrors.FieldViolation{Field: "version", Message: "must be positive"})
	}
	return s.updateStatus(ctx, h, taskID, status, version)
}

func (s *Service) updateStatus(ctx context.Context, h *idmodels.Handle, taskID, raw string, version int64) (task *models.Task, err error) {
	ctx, end := s.begin(ctx, "UpdateTaskStatus",
		attribute.String("task.id", taskID),
		attribute.String("task.status", raw),
	)
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	to := workflow.Status(raw)
	if !to.IsValid() {
		return nil, dErrors.NewValidation("invalid task status", dErrors.FieldViolation{
			Field:   models.FieldStatus,
			Message: "must be one of to-do, in-progress, completed",
		})
	}
	current, err := s.get(ctx, h, s.collections.Tasks, taskID, "task")
	if err != nil {
		return nil, err
	}
	existing, err := decodeOne(current, models.DecodeTask)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanTransition(existing.Status, to); err != nil {
		return nil, err
	}

	doc, err := s.store.Update(ctx, h.Principal(), s.collections.Tasks, taskID,
		map[string]any{models.FieldStatus: string(to)}, version, requestcontext.Now(ctx))
	if err != nil {
		return nil, translate(err, "failed to update task status")
	}
	s.metrics.IncrementStatusChange(string(to))
	s.logAudit(ctx, audit.EventTaskStatusChanged,
		"user_id", h.UserID(),
		"resource_id", taskID,
		"from", string(existing.Status),
		"to", string(to),
	)
	return decodeOne(doc, models.DecodeTask)
}

// CreateComment validates the form, checks the task exists and persists the
// comment with grants derived from the session's user. The stored authorId
// and authorName are also taken from the session user, not from the form's
// author_id and author_name; those fields are only validated, and a mismatch
// is logged. Client-supplied author fields never influence the grants.
func (s *Service) CreateComment(ctx context.Context, h *idmodels.Handle, taskID string, in models.CommentInput) (comment *models.Comment, err error) {
	ctx, end := s.begin(ctx, "CreateComment", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	form := map[string]string{
		validation.FieldTaskID:      taskID,
		validation.FieldCommentText: in.CommentText,
		validation.FieldAuthorID:    in.AuthorID,
		validation.FieldAuthorName:  in.AuthorName,
	}
	valid, err := validation.ValidateComment(form)
	if err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, h, s.collections.Tasks, valid.TaskID, "task"); err != nil {
		return nil, err
	}
	user, err := s.users.ResolveUser(ctx, h)
	if err != nil {
		return nil, err
	}
	if valid.AuthorID != user.ID {
		s.logger.InfoContext(ctx, "comment author fields differ from session user",
			"session_user_id", user.ID,
			"form_author_id", valid.AuthorID,
		)
	}

	data, err := models.EncodeComment(valid.CommentText, user.ID, user.Name, valid.TaskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode comment")
	}
	doc, err := s.createWithGrants(ctx, h, s.collections.Comments, permission.ForDocument(permission.KindComment, user.ID), data)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCommentsCreated()
	s.logAudit(ctx, audit.EventCommentCreated, "user_id", user.ID, "resource_id", doc.ID)
	return decodeOne(doc, models.DecodeComment)
}

func (s *Service) ListCommentsByTask(ctx context.Context, h *idmodels.Handle, taskID string) (comments []*models.Comment, err error) {
	ctx, end := s.begin(ctx, "ListCommentsByTask", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	if err := requireHandle(h); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, h.Principal(), s.collections.Comments, models.Equal(models.FieldTaskID, taskID))
	if err != nil {
		return nil, translate(err, "failed to list comments")
	}
	return decodeAll(docs, models.DecodeComment)
}

func (s *Service) get(ctx context.Context, h *idmodels.Handle, collection, id, kind string) (*models.Document, error) {
	doc, err := s.store.Get(ctx, h.Principal(), collection, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidQuery) {
			return nil, dErrors.New(dErrors.CodeNotFound, kind+" not found")
		}
		return nil, translate(err, "failed to load "+kind)
	}
	return doc, nil
}

func (s *Service) create(ctx context.Context, h *idmodels.Handle, collection string, kind permission.Kind, data []byte) (*models.Document, error) {
	return s.createWithGrants(ctx, h, collection, permission.ForDocument(kind, h.UserID()), data)
}

func (s *Service) createWithGrants(ctx context.Context, h *idmodels.Handle, collection string, grants []permission.Grant, data []byte) (*models.Document, error) {
	now := requestcontext.Now(ctx)
	doc := &models.Document{
		ID:           uuid.NewString(),
		CollectionID: collection,
		CreatedAt:    now,
		UpdatedAt:    now,
		Permissions:  permission.Strings(grants),
		Data:         data,
	}
	if err := s.store.Create(ctx, h.Principal(), doc); err != nil {
		return nil, translate(err, "failed to create document")
	}
	return doc, nil
}

// begin opens a span and returns a closer that records metrics and the outcome.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "documents."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		s.metrics.ObserveDocument(op, start, err)
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

// translate maps store sentinels onto domain codes, keeping the store's message.
func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrInvalidQuery):
		return dErrors.Wrap(err, dErrors.CodeQuery, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrForbidden):
		return dErrors.Wrap(err, dErrors.CodeForbidden, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStore, msg)
	}
}

func decodeOne[T any](doc *models.Document, decode func(*models.Document) (*T, error)) (*T, error) {
	v, err := decode(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "stored document is malformed")
	}
	return v, nil
}

func decodeAll[T any](docs []*models.Document, decode func(*models.Document) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v, err := decodeOne(d, decode)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
