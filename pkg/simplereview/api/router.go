package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
	"github.com/tendant/simple-review/pkg/simplereview/presigned"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service simplereview.Service
	// Auth resolves bearer tokens. Without it every request is anonymous.
	Auth *identity.Authenticator
	// Signer validates media URLs. Nil or disabled serves media unsigned.
	Signer *presigned.Signer
	// MediaPrefix is where media is mounted (default: /media). It must match
	// the prefix the signer builds URLs with.
	MediaPrefix string
}

// NewRouter builds a standalone router with the engine's routes:
//
//	/api/v1/scripts/...      lifecycle, versions, engagement, uploads
//	/api/v1/leaderboards/... /api/v1/stats /api/v1/images/{id}
//	/api/v1/admin/...        state counts, cache diagnostics
//	/media/*                 content-addressed objects
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	Register(r, cfg)
	r.NotFound(NotFound)
	return r
}

// Register adds the engine's routes to an existing router.
func Register(r chi.Router, cfg RouterConfig) {
	mediaPrefix := "/" + strings.Trim(cfg.MediaPrefix, "/")
	if mediaPrefix == "/" {
		mediaPrefix = "/media"
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Auth != nil {
				r.Use(cfg.Auth.Middleware(WriteError))
			}
			r.Mount("/scripts", NewScriptsHandler(cfg.Service).Routes())
			r.Mount("/admin", NewAdminHandler(cfg.Service).Routes())
			NewEngagementHandler(cfg.Service).Register(r)
		})
		r.Mount(mediaPrefix, NewMediaHandler(cfg.Service, cfg.Signer).Routes())
	})
}

// NotFound renders the error envelope for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, simplereview.ErrNotFound)
}
