package httptransport

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	blobmodels "taskboard/internal/blobs/models"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
)

type filePreview struct {
	File    *blobmodels.File `json:"file"`
	Preview string           `json:"preview,omitempty"`
}

// handleUpload accepts either a multipart form with a "file" part or a raw
// body. A raw body without Content-Length is uploaded as unknown size.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "upload file", err)
		return
	}

	in := blobmodels.UploadInput{Reader: r.Body, Size: r.ContentLength, Filename: r.URL.Query().Get("name")}
	if in.Size < 0 {
		in.Size = blobmodels.UnknownSize
	}
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		if h.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
		}
		part, header, err := r.FormFile("file")
		if err != nil {
			h.fail(w, r, "upload file", dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart upload requires a file part"))
			return
		}
		defer part.Close()
		in = blobmodels.UploadInput{Reader: part, Size: header.Size, Filename: header.Filename}
	}

	file, err := h.files.Upload(r.Context(), sess, in)
	if err != nil {
		h.fail(w, r, "upload file", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, file)
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "list files", err)
		return
	}
	files, err := h.files.List(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "list files", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(files), "files": files})
}

// handleListPreviews lists files with image previews inlined as data URIs.
// Previews render concurrently; files that are not images carry no preview.
func (h *Handler) handleListPreviews(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "list previews", err)
		return
	}
	files, err := h.files.List(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "list previews", err)
		return
	}

	out := make([]filePreview, len(files))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.previewFanout)
	for i, f := range files {
		i, f := i, f
		out[i].File = f
		if !strings.HasPrefix(f.MimeType, "image/") {
			continue
		}
		g.Go(func() error {
			img, err := h.files.Preview(ctx, sess, f.ID, 0)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeValidation) {
					return nil
				}
				return err
			}
			out[i].Preview = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.fail(w, r, "list previews", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(out), "files": out})
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "get file", err)
		return
	}
	file, err := h.files.Get(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get file", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, file)
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "delete file", err)
		return
	}
	if err := h.files.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "download file", err)
		return
	}
	file, data, err := h.files.Download(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "download file", err)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if file.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.fail(w, r, "preview file", err)
		return
	}
	width := 0
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil || width <= 0 || width > 4096 {
			h.fail(w, r, "preview file", dErrors.NewValidation("invalid preview width",
				dErrors.FieldViolation{Field: "width", Message: fmt.Sprintf("must be between 1 and 4096, got %q", raw)}))
			return
		}
	}
	img, err := h.files.Preview(r.Context(), sess, chi.URLParam(r, "id"), width)
	if err != nil {
		h.fail(w, r, "preview file", err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
