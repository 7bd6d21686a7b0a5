package simplereview

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (s *service) ToggleLike(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ToggleResult, error) {
	return s.setFact(ctx, actor, scriptID, FactLike, nil)
}

func (s *service) ToggleFavorite(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ToggleResult, error) {
	return s.setFact(ctx, actor, scriptID, FactFavorite, nil)
}

func (s *service) SetLike(ctx context.Context, actor *Actor, scriptID uuid.UUID, active bool) (*ToggleResult, error) {
	return s.setFact(ctx, actor, scriptID, FactLike, &active)
}

func (s *service) SetFavorite(ctx context.Context, actor *Actor, scriptID uuid.UUID, active bool) (*ToggleResult, error) {
	return s.setFact(ctx, actor, scriptID, FactFavorite, &active)
}

// setFact flips the fact when desired is nil and sets it otherwise. Adding an
// existing fact and removing an absent one are both absorbed. The returned
// count is always recomputed from the ledger.
func (s *service) setFact(ctx context.Context, actor *Actor, scriptID uuid.UUID, kind FactKind, desired *bool) (*ToggleResult, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}

	result := &ToggleResult{}
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		script, err := tx.Scripts().GetScript(ctx, scriptID)
		if err != nil {
			return err
		}
		if !canView(actor, script) {
			return ErrScriptNotFound
		}

		engagement := tx.Engagement()
		var active bool
		if desired != nil {
			active = *desired
		} else {
			has, err := engagement.HasFact(ctx, kind, scriptID, actor.UserID)
			if err != nil {
				return err
			}
			active = !has
		}

		if active {
			_, err = engagement.AddFact(ctx, kind, scriptID, actor.UserID)
		} else {
			_, err = engagement.RemoveFact(ctx, kind, scriptID, actor.UserID)
		}
		if err != nil {
			return err
		}

		count, err := engagement.CountFacts(ctx, kind, scriptID)
		if err != nil {
			return err
		}
		result.Active = active
		result.Count = count
		return nil
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "set_"+string(kind), err)
	}

	s.invalidate(LeaderboardBucket(kind.Leaderboard()), ScriptBucket(scriptID))
	return result, nil
}

// RecordDownload appends one event to the download ledger.
func (s *service) RecordDownload(ctx context.Context, event *DownloadEvent) error {
	if event == nil || event.ScriptID == uuid.Nil || event.VersionID == uuid.Nil {
		return fmt.Errorf("%w: download event needs a script and a version", ErrInvalidArgument)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.store.Engagement().AppendDownload(ctx, event); err != nil {
		return s.scriptError(event.ScriptID, "record_download", err)
	}
	s.invalidate(LeaderboardBucket(LeaderboardDownloads), ScriptBucket(event.ScriptID))
	return nil
}

// DownloadVersion resolves the requested version and queues the ledger
// append. The append never fails the download.
func (s *service) DownloadVersion(ctx context.Context, actor *Actor, req DownloadRequest) (*Version, error) {
	script, err := s.store.Scripts().GetScript(ctx, req.ScriptID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, script) {
		return nil, ErrScriptNotFound
	}

	var version *Version
	if req.Version > 0 {
		version, err = s.store.Versions().GetVersion(ctx, req.ScriptID, req.Version)
	} else {
		version, err = s.store.Versions().GetLatestVersion(ctx, req.ScriptID)
	}
	if err != nil {
		return nil, err
	}

	event := &DownloadEvent{
		ID:        uuid.New(),
		ScriptID:  req.ScriptID,
		VersionID: version.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		CreatedAt: s.now(),
	}
	if actor.IsAuthenticated() {
		uid := actor.UserID
		event.UserID = &uid
	}
	err = s.tasks.Submit("record_download", func(ctx context.Context) error {
		return s.RecordDownload(ctx, event)
	})
	if err != nil {
		s.logger.Error("failed to queue download event", "script_id", req.ScriptID, "version", version.Number, "err", err)
	}
	return version, nil
}

// BatchStats aggregates engagement for many scripts with one grouped query
// per ledger, plus one per fact kind for the caller's own facts. Ids the
// caller cannot see, or that do not exist, are left out of the result.
func (s *service) BatchStats(ctx context.Context, actor *Actor, scriptIDs []uuid.UUID) (map[uuid.UUID]EngagementStats, error) {
	if len(scriptIDs) > MaxPageSize {
		return nil, fmt.Errorf("%w: at most %d scripts per request", ErrInvalidArgument, MaxPageSize)
	}
	ids, err := s.visibleIDs(ctx, actor, uniqueIDs(scriptIDs))
	if err != nil {
		return nil, err
	}
	stats := make(map[uuid.UUID]EngagementStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	engagement := s.store.Engagement()
	likes, err := engagement.CountByScripts(ctx, LeaderboardLikes, ids)
	if err != nil {
		return nil, err
	}
	favorites, err := engagement.CountByScripts(ctx, LeaderboardFavorites, ids)
	if err != nil {
		return nil, err
	}
	downloads, err := engagement.CountByScripts(ctx, LeaderboardDownloads, ids)
	if err != nil {
		return nil, err
	}

	var liked, favorited map[uuid.UUID]bool
	if actor.IsAuthenticated() {
		if liked, err = engagement.FactsForUser(ctx, FactLike, ids, actor.UserID); err != nil {
			return nil, err
		}
		if favorited, err = engagement.FactsForUser(ctx, FactFavorite, ids, actor.UserID); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		stats[id] = EngagementStats{
			Likes:             likes[id],
			Favorites:         favorites[id],
			Downloads:         downloads[id],
			LikedByCaller:     liked[id],
			FavoritedByCaller: favorited[id],
		}
	}
	return stats, nil
}

func (s *service) visibleIDs(ctx context.Context, actor *Actor, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := ids[:0]
	for _, id := range ids {
		script, err := s.store.Scripts().GetScript(ctx, id)
		if errors.Is(err, ErrScriptNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if canView(actor, script) {
			out = append(out, id)
		}
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
