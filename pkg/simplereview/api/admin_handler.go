package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
)

const maxStatsIDsPerRequest = simplereview.MaxPageSize

// EngagementHandler serves leaderboards, batched stats and image removal
type EngagementHandler struct {
	service simplereview.Service
}

func NewEngagementHandler(service simplereview.Service) *EngagementHandler {
	return &EngagementHandler{service: service}
}

// Register adds the engagement routes to r
func (h *EngagementHandler) Register(r chi.Router) {
	r.Get("/leaderboards/{kind}", h.Leaderboard)
	r.Post("/stats", h.BatchStats)
	r.Delete("/images/{id}", h.RemoveImage)
}

// BatchStatsRequest is the request body for batched engagement stats
type BatchStatsRequest struct {
	IDs []string `json:"ids"`
}

// Leaderboard returns the ranking for likes, favorites or downloads
func (h *EngagementHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	kind := simplereview.LeaderboardKind(chi.URLParam(r, "kind"))
	entries, err := h.service.Leaderboard(r.Context(), kind, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*simplereview.LeaderboardEntry{}
	}
	render.JSON(w, r, entries)
}

// BatchStats returns engagement counts for many scripts at once
func (h *EngagementHandler) BatchStats(w http.ResponseWriter, r *http.Request) {
	var req BatchStatsRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, DefaultMaxRequestBytes), &req); err != nil {
		WriteError(w, r, requestBodyError(err))
		return
	}
	if len(req.IDs) > maxStatsIDsPerRequest {
		WriteError(w, r, simplereview.ErrInvalidArgument)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, r, simplereview.ErrInvalidArgument)
			return
		}
		ids = append(ids, id)
	}

	stats, err := h.service.BatchStats(r.Context(), identity.ActorFromContext(r.Context()), ids)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	resp := make(map[string]simplereview.EngagementStats, len(stats))
	for id, s := range stats {
		resp[id.String()] = s
	}
	render.JSON(w, r, resp)
}

// RemoveImage deletes an image from its script
func (h *EngagementHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, simplereview.ErrImageNotFound)
		return
	}
	if err := h.service.RemoveImage(r.Context(), identity.ActorFromContext(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminHandler serves moderation and cache diagnostics
type AdminHandler struct {
	service simplereview.Service
}

func NewAdminHandler(service simplereview.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats/states", h.StateCounts)
	r.Get("/cache", h.CacheStats)
	r.Delete("/cache", h.ResetCache)
	return r
}

// StateCounts returns the number of scripts per state
func (h *AdminHandler) StateCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.StateCounts(r.Context(), identity.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	render.JSON(w, r, counts)
}

// CacheStats returns hit/miss counters. Admins only.
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())
	if !actor.IsAuthenticated() {
		WriteError(w, r, simplereview.ErrUnauthorized)
		return
	}
	if !actor.Role.AtLeast(simplereview.RoleAdmin) {
		WriteError(w, r, simplereview.ErrForbidden)
		return
	}
	render.JSON(w, r, h.service.CacheStats())
}

// ResetCache drops every cached entry
func (h *AdminHandler) ResetCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetCache(r.Context(), identity.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
