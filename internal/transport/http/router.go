// Package httptransport is the JSON/cookie adapter over the core services.
// It owns routing and credential I/O only; every rule lives in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	blobmodels "taskboard/internal/blobs/models"
	"taskboard/internal/credential"
	docmodels "taskboard/internal/documents/models"
	idmodels "taskboard/internal/identity/models"
	"taskboard/internal/platform/middleware"
)

// Gateway is the identity surface the adapter needs.
type Gateway interface {
	CreateElevatedHandle() *idmodels.Handle
	CreateSessionHandle(ctx context.Context, token string) (*idmodels.Handle, error)
	SignIn(ctx context.Context, email, password string) (*idmodels.SessionToken, error)
	SignUp(ctx context.Context, name, email, password string) (*idmodels.SessionToken, error)
	SignOut(ctx context.Context, token string)
	GetCurrentUser(ctx context.Context, token string) *idmodels.User
	AdminKey() string
}

type Documents interface {
	ListProjects(ctx context.Context, h *idmodels.Handle) ([]*docmodels.Project, error)
	GetProject(ctx context.Context, h *idmodels.Handle, id string) (*docmodels.Project, error)
	CreateProject(ctx context.Context, h *idmodels.Handle, in docmodels.ProjectInput) (*docmodels.Project, error)
	ListTasksByProject(ctx context.Context, h *idmodels.Handle, projectID string) ([]*docmodels.Task, error)
	GetTask(ctx context.Context, h *idmodels.Handle, id string) (*docmodels.Task, error)
	CreateTask(ctx context.Context, h *idmodels.Handle, projectID string, in docmodels.TaskInput) (*docmodels.Task, error)
	UpdateTaskStatus(ctx context.Context, h *idmodels.Handle, taskID, status string) (*docmodels.Task, error)
	UpdateTaskStatusIfVersion(ctx context.Context, h *idmodels.Handle, taskID, status string, version int64) (*docmodels.Task, error)
	CreateComment(ctx context.Context, h *idmodels.Handle, taskID string, in docmodels.CommentInput) (*docmodels.Comment, error)
	ListCommentsByTask(ctx context.Context, h *idmodels.Handle, taskID string) ([]*docmodels.Comment, error)
}

type Files interface {
	Upload(ctx context.Context, h *idmodels.Handle, in blobmodels.UploadInput) (*blobmodels.File, error)
	Download(ctx context.Context, h *idmodels.Handle, id string) (*blobmodels.File, []byte, error)
	Preview(ctx context.Context, h *idmodels.Handle, id string, width int) ([]byte, error)
	Delete(ctx context.Context, h *idmodels.Handle, id string) error
	List(ctx context.Context, h *idmodels.Handle) ([]*blobmodels.File, error)
	Get(ctx context.Context, h *idmodels.Handle, id string) (*blobmodels.File, error)
}

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies wires the adapter.
type Dependencies struct {
	Gateway   Gateway
	Documents Documents
	Files     Files
	Cookies   *credential.Store
	Logger    *slog.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health lists named backend checks run by /health.
	Health map[string]HealthCheck
	// PreviewFanout bounds concurrent preview renders on /files/previews.
	PreviewFanout int
	// MaxUploadBytes bounds multipart form parsing.
	MaxUploadBytes int64
}

// Handler holds the route handlers.
type Handler struct {
	gateway        Gateway
	documents      Documents
	files          Files
	cookies        *credential.Store
	logger         *slog.Logger
	health         map[string]HealthCheck
	previewFanout  int
	maxUploadBytes int64
}

func newHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fanout := deps.PreviewFanout
	if fanout <= 0 {
		fanout = 4
	}
	return &Handler{
		gateway:        deps.Gateway,
		documents:      deps.Documents,
		files:          deps.Files,
		cookies:        deps.Cookies,
		logger:         logger,
		health:         deps.Health,
		previewFanout:  fanout,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// NewRouter builds the full route tree.
func NewRouter(deps Dependencies) http.Handler {
	h := newHandler(deps)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(h.logger))

	r.Get("/health", h.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up", h.handleSignUp)
		r.Post("/sign-in", h.handleSignIn)
		r.Post("/sign-out", h.handleSignOut)
		r.Get("/me", h.handleMe)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleListProjects)
		r.Post("/", h.handleCreateProject)
		r.Get("/{id}", h.handleGetProject)
		r.Get("/{id}/tasks", h.handleListTasks)
		r.Post("/{id}/tasks", h.handleCreateTask)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/{id}", h.handleGetTask)
		r.Patch("/{id}/status", h.handleUpdateTaskStatus)
		r.Get("/{id}/comments", h.handleListComments)
		r.Post("/{id}/comments", h.handleCreateComment)
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.handleListFiles)
		r.Post("/", h.handleUpload)
		r.Get("/previews", h.handleListPreviews)
		r.Get("/{id}", h.handleGetFile)
		r.Delete("/{id}", h.handleDeleteFile)
		r.Get("/{id}/download", h.handleDownload)
		r.Get("/{id}/preview", h.handlePreview)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminKey(h.gateway.AdminKey(), h.logger))
		r.Post("/projects", h.handleAdminCreateProject)
	})

	return r
}

// session resolves the request's cookie into a session handle.
func (h *Handler) session(r *http.Request) (*idmodels.Handle, error) {
	return h.gateway.CreateSessionHandle(r.Context(), h.cookies.Read(r))
}
