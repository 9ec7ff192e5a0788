package httptransport

import (
	"net/http"
	"time"

	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
	"taskboard/pkg/requestcontext"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid sign-up request", err)
		return
	}
	tok, err := h.gateway.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "sign-up failed", err)
		return
	}
	h.cookies.Set(w, tok.Value)
	h.writeCurrentUser(w, r, tok.Value, http.StatusCreated)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid sign-in request", err)
		return
	}
	tok, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "sign-in failed", err)
		return
	}
	h.cookies.Set(w, tok.Value)
	h.writeCurrentUser(w, r, tok.Value, http.StatusOK)
}

// handleSignOut always clears the cookie, whatever happened at the session store.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	h.gateway.SignOut(r.Context(), h.cookies.Read(r))
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	h.writeCurrentUser(w, r, h.cookies.Read(r), http.StatusOK)
}

func (h *Handler) writeCurrentUser(w http.ResponseWriter, r *http.Request, token string, status int) {
	user := h.gateway.GetCurrentUser(r.Context(), token)
	if user == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNoSession, "No session"))
		return
	}
	httputil.WriteJSON(w, status, userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// fail logs err at a level matching its status and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
