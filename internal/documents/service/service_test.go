package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taskboard/internal/documents/models"
	"taskboard/internal/documents/service/mocks"
	idmodels "taskboard/internal/identity/models"
	"taskboard/internal/permission"
	"taskboard/internal/platform/metrics"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockStore *mocks.MockDocumentStore
	mockUsers *mocks.MockUserResolver
	mockAudit *mocks.MockAuditPublisher
	service   *Service
	handle    *idmodels.Handle
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockDocumentStore(s.ctrl)
	s.mockUsers = mocks.NewMockUserResolver(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.service = New(s.mockStore, s.mockUsers,
		Collections{Projects: "projects", Tasks: "tasks", Comments: "comments"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.mockAudit),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
	)
	s.handle = idmodels.NewSessionHandle("u1", "s1")
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) taskDoc(id, status string) *models.Document {
	data, err := json.Marshal(map[string]string{"name": "Ship", "status": status, "projectId": "p1"})
	s.Require().NoError(err)
	return &models.Document{ID: id, CollectionID: "tasks", Version: 1, Data: data}
}

func (s *ServiceSuite) TestOperationsRequireASession() {
	for _, h := range []*idmodels.Handle{nil, idmodels.NewSessionHandle("", "")} {
		_, err := s.service.ListProjects(s.ctx, h)
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
		_, err = s.service.CreateComment(s.ctx, h, "t1", models.CommentInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	}
}

func (s *ServiceSuite) TestListTasksByProjectTranslatesQueryErrors() {
	s.Run("malformed id", func() {
		s.mockStore.EXPECT().List(gomock.Any(), gomock.Any(), "tasks", models.Equal(models.FieldProjectID, "bad id")).
			Return(nil, sentinel.ErrInvalidQuery)
		_, err := s.service.ListTasksByProject(s.ctx, s.handle, "bad id")
		s.True(dErrors.HasCode(err, dErrors.CodeQuery))
	})

	s.Run("store outage keeps the store message", func() {
		s.mockStore.EXPECT().List(gomock.Any(), gomock.Any(), "tasks", gomock.Any()).
			Return(nil, errors.New("connection refused"))
		_, err := s.service.ListTasksByProject(s.ctx, s.handle, "p1")
		s.True(dErrors.HasCode(err, dErrors.CodeStore))
		s.Contains(err.Error(), "connection refused")
	})
}

func (s *ServiceSuite) TestGetTaskNotFound() {
	s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "tasks", "missing").Return(nil, sentinel.ErrNotFound)
	_, err := s.service.GetTask(s.ctx, s.handle, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCreateTaskRejectsUnknownStatusBeforeStore() {
	_, err := s.service.CreateTask(s.ctx, s.handle, "p1", models.TaskInput{Name: "Ship", Status: "blocked"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("status", dErrors.FieldsOf(err)[0].Field)
}

func (s *ServiceSuite) TestCreateTaskRequiresExistingProject() {
	s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "projects", "p404").Return(nil, sentinel.ErrNotFound)
	_, err := s.service.CreateTask(s.ctx, s.handle, "p404", models.TaskInput{Name: "Ship"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCreateTaskUsesCollectionDefaults() {
	s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "projects", "p1").Return(&models.Document{ID: "p1", Data: []byte(`{}`)}, nil)
	s.mockStore.EXPECT().Create(gomock.Any(), s.handle.Principal(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ permission.Principal, doc *models.Document) error {
			s.Empty(doc.Permissions)
			s.Equal("tasks", doc.CollectionID)
			s.True(doc.CreatedAt.Equal(s.now))
			return nil
		})
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	task, err := s.service.CreateTask(s.ctx, s.handle, "p1", models.TaskInput{Name: "Ship"})
	s.Require().NoError(err)
	s.Equal("to-do", string(task.Status))
	s.Equal("p1", task.ProjectID)
}

func (s *ServiceSuite) TestUpdateTaskStatus() {
	s.Run("invalid status never reaches the store", func() {
		_, err := s.service.UpdateTaskStatus(s.ctx, s.handle, "t1", "done")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("patches only the status field", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "tasks", "t1").Return(s.taskDoc("t1", "to-do"), nil)
		s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any(), "tasks", "t1",
			map[string]any{"status": "completed"}, int64(0), s.now).Return(s.taskDoc("t1", "completed"), nil)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		task, err := s.service.UpdateTaskStatus(s.ctx, s.handle, "t1", "completed")
		s.Require().NoError(err)
		s.Equal("completed", string(task.Status))
	})

	s.Run("stale version is a conflict", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "tasks", "t1").Return(s.taskDoc("t1", "to-do"), nil)
		s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any(), "tasks", "t1", gomock.Any(), int64(3), gomock.Any()).
			Return(nil, sentinel.ErrConflict)

		_, err := s.service.UpdateTaskStatusIfVersion(s.ctx, s.handle, "t1", "completed", 3)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestCreateCommentValidatesBeforeStore() {
	_, err := s.service.CreateComment(s.ctx, s.handle, "t1", models.CommentInput{
		CommentText: "too short",
		AuthorID:    "u1",
		AuthorName:  "Ada",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("comment_text", dErrors.FieldsOf(err)[0].Field)
}

func (s *ServiceSuite) TestCreateCommentDerivesGrantsFromSession() {
	s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any(), "tasks", "t1").Return(s.taskDoc("t1", "to-do"), nil)
	s.mockUsers.EXPECT().ResolveUser(gomock.Any(), s.handle).Return(&idmodels.User{ID: "u1", Name: "Ada"}, nil)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ permission.Principal, doc *models.Document) error {
			s.ElementsMatch([]string{`read("users")`, `update("user:u1")`, `delete("user:u1")`}, doc.Permissions)
			return nil
		})
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	comment, err := s.service.CreateComment(s.ctx, s.handle, "t1", models.CommentInput{
		CommentText: strings.Repeat("a", 20),
		AuthorID:    "someone-else",
		AuthorName:  "Mallory",
	})
	s.Require().NoError(err)
	s.Equal("u1", comment.AuthorID)
	s.Equal("Ada", comment.AuthorName)
	s.Equal("t1", comment.TaskID)
}
