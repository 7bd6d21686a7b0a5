package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
)

// DefaultMaxRequestBytes bounds request bodies before the upload policy sees them.
const DefaultMaxRequestBytes = 8 << 20

// ScriptsHandler handles HTTP requests for scripts, engagement and uploads
type ScriptsHandler struct {
	service  simplereview.Service
	maxBytes int64
}

// NewScriptsHandler creates a new scripts handler
func NewScriptsHandler(service simplereview.Service) *ScriptsHandler {
	return &ScriptsHandler{service: service, maxBytes: DefaultMaxRequestBytes}
}

// Routes returns the routes for scripts
func (h *ScriptsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListScripts)
	r.Post("/", h.CreateScript)
	r.Post("/approve-all", h.ApproveAll)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetScript)
		r.Delete("/", h.HardDelete)

		r.Get("/versions", h.ListVersions)
		r.Post("/versions", h.AddVersion)
		r.Get("/download", h.Download)
		r.Get("/reviews", h.ListReviews)

		r.Post("/submit", h.transition(h.service.SubmitForReview))
		r.Post("/approve", h.transition(h.service.Approve))
		r.Post("/resubmit", h.transition(h.service.Resubmit))
		r.Post("/abandon", h.transition(h.service.SoftDelete))
		r.Post("/reject", h.Reject)
		r.Post("/restore", h.Restore)

		r.Post("/like", h.toggle(h.service.ToggleLike))
		r.Put("/like", h.set(h.service.SetLike))
		r.Post("/favorite", h.toggle(h.service.ToggleFavorite))
		r.Put("/favorite", h.set(h.service.SetFavorite))

		r.Post("/images", h.UploadImage)
	})

	return r
}

// CreateScriptRequest is the request body for submitting a script
type CreateScriptRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	AuthorName  string          `json:"author_name"`
	Content     json.RawMessage `json:"content"`
}

// RejectRequest is the request body for rejecting a script
type RejectRequest struct {
	Reason string `json:"reason"`
}

// RestoreRequest is the request body for restoring an abandoned script
type RestoreRequest struct {
	State             string `json:"state"`
	TransferOwnership bool   `json:"transfer_ownership"`
}

// SetRequest is the request body for explicit like/favorite state
type SetRequest struct {
	Active bool `json:"active"`
}

func (h *ScriptsHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return requestBodyError(err)
	}
	return nil
}

func requestBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", simplereview.ErrPayloadTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: malformed request body", simplereview.ErrInvalidArgument)
}

func scriptID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// An unparseable id names nothing.
		return uuid.Nil, simplereview.ErrScriptNotFound
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", simplereview.ErrInvalidArgument, name)
	}
	return n, nil
}

// ListScripts lists scripts by state
func (h *ScriptsHandler) ListScripts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	state := simplereview.StatePublished
	if q := r.URL.Query().Get("state"); q == "all" {
		state = ""
	} else if q != "" {
		state = simplereview.State(q)
	}

	scripts, err := h.service.ListScripts(r.Context(), identity.ActorFromContext(r.Context()), simplereview.ListScriptsRequest{
		State: state, Limit: limit, Offset: offset,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if scripts == nil {
		scripts = []*simplereview.Script{}
	}
	render.JSON(w, r, scripts)
}

// CreateScript submits a new script with its first version
func (h *ScriptsHandler) CreateScript(w http.ResponseWriter, r *http.Request) {
	var req CreateScriptRequest
	if err := h.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	script, err := h.service.CreateScript(r.Context(), identity.ActorFromContext(r.Context()), simplereview.CreateScriptRequest{
		Title:       req.Title,
		Description: req.Description,
		AuthorName:  req.AuthorName,
		Content:     req.Content,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, script)
}

// GetScript returns the script detail view
func (h *ScriptsHandler) GetScript(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	detail, err := h.service.GetScript(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// HardDelete permanently removes a script
func (h *ScriptsHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.service.HardDelete(r.Context(), identity.ActorFromContext(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddVersion appends a new document version; the body is the document itself
func (h *ScriptsHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		WriteError(w, r, requestBodyError(err))
		return
	}
	version, err := h.service.AddVersion(r.Context(), identity.ActorFromContext(r.Context()), id, content)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, version)
}

// ListVersions returns the version history
func (h *ScriptsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	versions, err := h.service.ListVersions(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if versions == nil {
		versions = []*simplereview.Version{}
	}
	render.JSON(w, r, versions)
}

// Download streams a version document and records the download
func (h *ScriptsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	number, err := queryInt(r, "version")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	version, err := h.service.DownloadVersion(r.Context(), identity.ActorFromContext(r.Context()), simplereview.DownloadRequest{
		ScriptID:  id,
		Version:   number,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-v%d.json"`, id, version.Number))
	w.Header().Set("ETag", `"`+version.ContentHash+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, version.Content)
}

// ListReviews returns the review history
func (h *ScriptsHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	reviews, err := h.service.ListReviews(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []*simplereview.Review{}
	}
	render.JSON(w, r, reviews)
}

type transitionFunc func(ctx context.Context, actor *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error)

func (h *ScriptsHandler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scriptID(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		script, err := fn(r.Context(), identity.ActorFromContext(r.Context()), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		render.JSON(w, r, script)
	}
}

// Reject rejects a pending script with a reason
func (h *ScriptsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req RejectRequest
	if err := h.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	script, err := h.service.Reject(r.Context(), identity.ActorFromContext(r.Context()), id, req.Reason)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.JSON(w, r, script)
}

// Restore brings an abandoned script back
func (h *ScriptsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req RestoreRequest
	if err := h.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	script, err := h.service.Restore(r.Context(), identity.ActorFromContext(r.Context()), id, simplereview.RestoreRequest{
		State:             simplereview.State(req.State),
		TransferOwnership: req.TransferOwnership,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.JSON(w, r, script)
}

// ApproveAll publishes every pending script
func (h *ScriptsHandler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.service.ApproveAll(r.Context(), identity.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"approved": len(scripts), "scripts": scripts})
}

type toggleFunc func(ctx context.Context, actor *simplereview.Actor, id uuid.UUID) (*simplereview.ToggleResult, error)

func (h *ScriptsHandler) toggle(fn toggleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scriptID(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		result, err := fn(r.Context(), identity.ActorFromContext(r.Context()), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

type setFunc func(ctx context.Context, actor *simplereview.Actor, id uuid.UUID, active bool) (*simplereview.ToggleResult, error)

func (h *ScriptsHandler) set(fn setFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scriptID(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		var req SetRequest
		if err := h.decode(w, r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		result, err := fn(r.Context(), identity.ActorFromContext(r.Context()), id, req.Active)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// UploadImage accepts a multipart upload in the "file" field
func (h *ScriptsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := scriptID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, requestBodyError(err))
			return
		}
		WriteError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", simplereview.ErrInvalidArgument))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, r, requestBodyError(err))
		return
	}
	image, err := h.service.UploadImage(r.Context(), identity.ActorFromContext(r.Context()), id, simplereview.ImageUpload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, image)
}
