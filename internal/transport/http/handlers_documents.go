package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	docmodels "taskboard/internal/documents/models"
	"taskboard/pkg/platform/httputil"
)

type updateStatusRequest struct {
	Status  string `json:"status"`
	Version *int64 `json:"version,omitempty"`
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "list projects", err)
		return
	}
	projects, err := h.documents.ListProjects(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "list projects", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(projects), "documents": projects})
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	var in docmodels.ProjectInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	project, err := h.documents.CreateProject(r.Context(), sess, in)
	if err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "get project", err)
		return
	}
	project, err := h.documents.GetProject(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get project", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	tasks, err := h.documents.ListTasksByProject(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(tasks), "documents": tasks})
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	var in docmodels.TaskInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	task, err := h.documents.CreateTask(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "get task", err)
		return
	}
	task, err := h.documents.GetTask(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get task", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

// handleUpdateTaskStatus applies a version check only when the body carries one.
func (h *Handler) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "update task status", err)
		return
	}
	var req updateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "update task status", err)
		return
	}
	id := chi.URLParam(r, "id")
	var task *docmodels.Task
	if req.Version != nil {
		task, err = h.documents.UpdateTaskStatusIfVersion(r.Context(), sess, id, req.Status, *req.Version)
	} else {
		task, err = h.documents.UpdateTaskStatus(r.Context(), sess, id, req.Status)
	}
	if err != nil {
		h.fail(w, r, "update task status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "list comments", err)
		return
	}
	comments, err := h.documents.ListCommentsByTask(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list comments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(comments), "documents": comments})
}

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "create comment", err)
		return
	}
	var in docmodels.CommentInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "create comment", err)
		return
	}
	comment, err := h.documents.CreateComment(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "create comment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}
