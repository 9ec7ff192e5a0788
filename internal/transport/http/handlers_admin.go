package httptransport

import (
	"context"
	"net/http"
	"time"

	docmodels "taskboard/internal/documents/models"
	"taskboard/pkg/platform/httputil"
)

const healthTimeout = 2 * time.Second

// handleAdminCreateProject seeds a project with the elevated handle. The
// admin key check happens in middleware.
func (h *Handler) handleAdminCreateProject(w http.ResponseWriter, r *http.Request) {
	var in docmodels.ProjectInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "seed project", err)
		return
	}
	project, err := h.documents.CreateProject(r.Context(), h.gateway.CreateElevatedHandle(), in)
	if err != nil {
		h.fail(w, r, "seed project", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.health))
	status := http.StatusOK
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
}
