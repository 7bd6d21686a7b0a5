package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/presigned"
)

// MediaHandler serves stored images and documents by store-relative key.
// Keys are content-addressed, so responses are cacheable forever.
type MediaHandler struct {
	service simplereview.Service
	signer  *presigned.Signer
}

// NewMediaHandler creates a media handler. With an enabled signer every
// request must carry a valid signature.
func NewMediaHandler(service simplereview.Service, signer *presigned.Signer) *MediaHandler {
	return &MediaHandler{service: service, signer: signer}
}

func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.signer != nil && h.signer.IsEnabled() {
		r.Use(presigned.ValidateMiddleware(h.signer))
	}
	r.Get("/*", h.Serve)
	r.Head("/*", h.Serve)
	return r
}

// Serve streams one object
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := presigned.ObjectKeyFromContext(r.Context())
	if key == "" {
		key = strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	}

	rc, meta, err := h.service.OpenMedia(r.Context(), key)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("media stream interrupted", "err", err)
	}
}
