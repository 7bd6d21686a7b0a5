package simplereview

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// GetScript returns a copy of the cached detail composite with the caller's
// own flags filled in.
func (s *service) GetScript(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ScriptDetail, error) {
	v, err := s.cache.GetOrCompute(ctx, detailKey(scriptID), s.detailTTL, func(ctx context.Context) (any, error) {
		return s.loadDetail(ctx, scriptID)
	})
	if err != nil {
		return nil, err
	}
	cached := v.(*ScriptDetail)
	if !canView(actor, cached.Script) {
		return nil, ErrScriptNotFound
	}

	detail := cloneDetail(cached)
	if actor.IsAuthenticated() {
		engagement := s.store.Engagement()
		if detail.Stats.LikedByCaller, err = engagement.HasFact(ctx, FactLike, scriptID, actor.UserID); err != nil {
			return nil, err
		}
		if detail.Stats.FavoritedByCaller, err = engagement.HasFact(ctx, FactFavorite, scriptID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func (s *service) loadDetail(ctx context.Context, scriptID uuid.UUID) (*ScriptDetail, error) {
	script, err := s.store.Scripts().GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.Versions().GetLatestVersion(ctx, scriptID)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return nil, err
	}
	images, err := s.store.Images().ListImages(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].SortOrder < images[j].SortOrder })
	for _, img := range images {
		img.URL = s.mediaURL(img.Path)
	}

	engagement := s.store.Engagement()
	var stats EngagementStats
	if stats.Likes, err = engagement.CountFacts(ctx, FactLike, scriptID); err != nil {
		return nil, err
	}
	if stats.Favorites, err = engagement.CountFacts(ctx, FactFavorite, scriptID); err != nil {
		return nil, err
	}
	if stats.Downloads, err = engagement.CountDownloads(ctx, scriptID); err != nil {
		return nil, err
	}

	return &ScriptDetail{
		Script:        script,
		LatestVersion: latest,
		Images:        images,
		Stats:         stats,
	}, nil
}

// ListScripts lists one state, or every state when req.State is empty. Only
// the published list is public.
func (s *service) ListScripts(ctx context.Context, actor *Actor, req ListScriptsRequest) ([]*Script, error) {
	if req.State != "" && !req.State.IsValid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, req.State)
	}
	if req.State != StatePublished {
		if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
			return nil, err
		}
	}
	limit, offset := normalizePage(req.Limit, req.Offset)

	v, err := s.cache.GetOrCompute(ctx, listKey(req.State, limit, offset), s.listTTL, func(ctx context.Context) (any, error) {
		filter := ScriptFilter{Limit: limit, Offset: offset}
		if req.State != "" {
			state := req.State
			filter.State = &state
		}
		return s.store.Scripts().ListScripts(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return cloneEach(v.([]*Script), (*Script).Clone), nil
}

func (s *service) ListVersions(ctx context.Context, actor *Actor, scriptID uuid.UUID) ([]*Version, error) {
	script, err := s.store.Scripts().GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, script) {
		return nil, ErrScriptNotFound
	}
	v, err := s.cache.GetOrCompute(ctx, versionsKey(scriptID), s.detailTTL, func(ctx context.Context) (any, error) {
		return s.store.Versions().ListVersions(ctx, scriptID)
	})
	if err != nil {
		return nil, err
	}
	return cloneEach(v.([]*Version), clonePtr[Version]), nil
}

// ListReviews returns the review trail to the owner and to administrators.
func (s *service) ListReviews(ctx context.Context, actor *Actor, scriptID uuid.UUID) ([]*Review, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}
	script, err := s.store.Scripts().GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(actor, script); err != nil {
		return nil, err
	}
	v, err := s.cache.GetOrCompute(ctx, reviewsKey(scriptID), s.detailTTL, func(ctx context.Context) (any, error) {
		return s.store.Reviews().ListReviews(ctx, scriptID)
	})
	if err != nil {
		return nil, err
	}
	return cloneEach(v.([]*Review), clonePtr[Review]), nil
}

func (s *service) Leaderboard(ctx context.Context, kind LeaderboardKind, limit int) ([]*LeaderboardEntry, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown leaderboard %q", ErrInvalidArgument, kind)
	}
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	v, err := s.cache.GetOrCompute(ctx, leaderboardKey(kind, limit), s.listTTL, func(ctx context.Context) (any, error) {
		return s.store.Engagement().Leaderboard(ctx, kind, limit)
	})
	if err != nil {
		return nil, err
	}
	return cloneEach(v.([]*LeaderboardEntry), clonePtr[LeaderboardEntry]), nil
}

// StateCounts returns the number of scripts in every state.
func (s *service) StateCounts(ctx context.Context, actor *Actor) (map[State]int64, error) {
	if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	v, err := s.cache.GetOrCompute(ctx, StateCountsBucket()+"counts", s.listTTL, func(ctx context.Context) (any, error) {
		counts, err := s.store.Scripts().CountScriptsByState(ctx)
		if err != nil {
			return nil, err
		}
		for _, st := range AllStates {
			if _, ok := counts[st]; !ok {
				counts[st] = 0
			}
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	cached := v.(map[State]int64)
	out := make(map[State]int64, len(cached))
	for k, n := range cached {
		out[k] = n
	}
	return out, nil
}

// Cached views are shared between callers; everything handed out is a copy.
func cloneDetail(d *ScriptDetail) *ScriptDetail {
	return &ScriptDetail{
		Script:        d.Script.Clone(),
		LatestVersion: clonePtr(d.LatestVersion),
		Images:        cloneEach(d.Images, clonePtr[ImageAsset]),
		Stats:         d.Stats,
	}
}

func cloneEach[T any](items []*T, clone func(*T) *T) []*T {
	if items == nil {
		return nil
	}
	out := make([]*T, len(items))
	for i, item := range items {
		out[i] = clone(item)
	}
	return out
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
