package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-review/pkg/simplereview"
)

type factKey struct {
	scriptID uuid.UUID
	userID   uuid.UUID
}

// data is one immutable snapshot of the store. Transactions clone it, work
// on the clone and swap it in on commit. Stored records are never modified
// in place, only replaced, so cloning copies containers and shares records.
type data struct {
	scripts   map[uuid.UUID]*simplereview.Script
	versions  map[uuid.UUID][]*simplereview.Version
	images    map[uuid.UUID]*simplereview.ImageAsset
	reviews   map[uuid.UUID][]*simplereview.Review
	facts     map[simplereview.FactKind]map[factKey]time.Time
	downloads map[uuid.UUID][]*simplereview.DownloadEvent
}

func newData() *data {
	return &data{
		scripts:   make(map[uuid.UUID]*simplereview.Script),
		versions:  make(map[uuid.UUID][]*simplereview.Version),
		images:    make(map[uuid.UUID]*simplereview.ImageAsset),
		reviews:   make(map[uuid.UUID][]*simplereview.Review),
		facts:     make(map[simplereview.FactKind]map[factKey]time.Time),
		downloads: make(map[uuid.UUID][]*simplereview.DownloadEvent),
	}
}

func (d *data) clone() *data {
	c := &data{
		scripts:   maps.Clone(d.scripts),
		versions:  make(map[uuid.UUID][]*simplereview.Version, len(d.versions)),
		images:    maps.Clone(d.images),
		reviews:   make(map[uuid.UUID][]*simplereview.Review, len(d.reviews)),
		facts:     make(map[simplereview.FactKind]map[factKey]time.Time, len(d.facts)),
		downloads: make(map[uuid.UUID][]*simplereview.DownloadEvent, len(d.downloads)),
	}
	for k, v := range d.versions {
		c.versions[k] = slices.Clone(v)
	}
	for k, v := range d.reviews {
		c.reviews[k] = slices.Clone(v)
	}
	for k, v := range d.facts {
		c.facts[k] = maps.Clone(v)
	}
	for k, v := range d.downloads {
		c.downloads[k] = slices.Clone(v)
	}
	return c
}

// Store implements simplereview.Store using in-memory storage. Writes are
// serialized; a write outside WithTx is its own single-statement
// transaction. Reads see the last committed snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data
}

var _ simplereview.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{d: newData()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx simplereview.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	// Only writers replace s.d and they all hold txMu.
	working := s.d.clone()
	if err := fn(&repos{store: s, tx: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.d = working
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() {}

func (s *Store) Scripts() simplereview.ScriptRepository { return &repos{store: s} }
func (s *Store) Versions() simplereview.VersionRepository { return &repos{store: s} }
func (s *Store) Images() simplereview.ImageRepository { return &repos{store: s} }
func (s *Store) Reviews() simplereview.ReviewRepository { return &repos{store: s} }
func (s *Store) Engagement() simplereview.EngagementRepository { return &repos{store: s} }

// repos implements every repository, either against a transaction's working
// snapshot or, when tx is nil, against the committed one.
type repos struct {
	store *Store
	tx    *data
}

func (r *repos) Scripts() simplereview.ScriptRepository { return r }
func (r *repos) Versions() simplereview.VersionRepository { return r }
func (r *repos) Images() simplereview.ImageRepository { return r }
func (r *repos) Reviews() simplereview.ReviewRepository { return r }
func (r *repos) Engagement() simplereview.EngagementRepository { return r }

func (r *repos) read(fn func(d *data) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return fn(r.store.d)
}

func (r *repos) write(ctx context.Context, fn func(d *data) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.WithTx(ctx, func(tx simplereview.Repositories) error {
		return fn(tx.(*repos).tx)
	})
}

// Script operations

func (r *repos) CreateScript(ctx context.Context, script *simplereview.Script) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[script.ID]; exists {
			return simplereview.ErrDuplicate
		}
		d.scripts[script.ID] = script.Clone()
		return nil
	})
}

func (r *repos) GetScript(ctx context.Context, id uuid.UUID) (*simplereview.Script, error) {
	var out *simplereview.Script
	err := r.read(func(d *data) error {
		script, exists := d.scripts[id]
		if !exists {
			return simplereview.ErrScriptNotFound
		}
		out = script.Clone()
		return nil
	})
	return out, err
}

// GetScriptForUpdate needs no row lock: transactions are already serialized.
func (r *repos) GetScriptForUpdate(ctx context.Context, id uuid.UUID) (*simplereview.Script, error) {
	return r.GetScript(ctx, id)
}

func (r *repos) UpdateScript(ctx context.Context, script *simplereview.Script) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[script.ID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		d.scripts[script.ID] = script.Clone()
		return nil
	})
}

func (r *repos) DeleteScript(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[id]; !exists {
			return simplereview.ErrScriptNotFound
		}
		delete(d.scripts, id)
		return nil
	})
}

func (r *repos) ListScripts(ctx context.Context, filter simplereview.ScriptFilter) ([]*simplereview.Script, error) {
	var out []*simplereview.Script
	err := r.read(func(d *data) error {
		for _, script := range d.scripts {
			if filter.State != nil && script.State != *filter.State {
				continue
			}
			if filter.OwnerID != nil && (script.OwnerID == nil || *script.OwnerID != *filter.OwnerID) {
				continue
			}
			out = append(out, script.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *repos) CountScriptsByState(ctx context.Context) (map[simplereview.State]int64, error) {
	counts := make(map[simplereview.State]int64)
	err := r.read(func(d *data) error {
		for _, script := range d.scripts {
			counts[script.State]++
		}
		return nil
	})
	return counts, err
}

// Version operations

func (r *repos) CreateVersion(ctx context.Context, version *simplereview.Version) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[version.ScriptID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		for _, v := range d.versions[version.ScriptID] {
			if v.Number == version.Number || v.ID == version.ID {
				return simplereview.ErrDuplicate
			}
		}
		versionCopy := *version
		d.versions[version.ScriptID] = append(d.versions[version.ScriptID], &versionCopy)
		return nil
	})
}

func (r *repos) GetVersion(ctx context.Context, scriptID uuid.UUID, number int) (*simplereview.Version, error) {
	var out *simplereview.Version
	err := r.read(func(d *data) error {
		for _, v := range d.versions[scriptID] {
			if v.Number == number {
				versionCopy := *v
				out = &versionCopy
				return nil
			}
		}
		return simplereview.ErrVersionNotFound
	})
	return out, err
}

func (r *repos) GetLatestVersion(ctx context.Context, scriptID uuid.UUID) (*simplereview.Version, error) {
	var out *simplereview.Version
	err := r.read(func(d *data) error {
		for _, v := range d.versions[scriptID] {
			if out == nil || v.Number > out.Number {
				out = v
			}
		}
		if out == nil {
			return simplereview.ErrVersionNotFound
		}
		versionCopy := *out
		out = &versionCopy
		return nil
	})
	return out, err
}

func (r *repos) ListVersions(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.Version, error) {
	var out []*simplereview.Version
	err := r.read(func(d *data) error {
		for _, v := range d.versions[scriptID] {
			versionCopy := *v
			out = append(out, &versionCopy)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r *repos) NextVersionNumber(ctx context.Context, scriptID uuid.UUID) (int, error) {
	next := 1
	err := r.read(func(d *data) error {
		for _, v := range d.versions[scriptID] {
			if v.Number >= next {
				next = v.Number + 1
			}
		}
		return nil
	})
	return next, err
}

func (r *repos) DeleteVersionsByScript(ctx context.Context, scriptID uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		delete(d.versions, scriptID)
		return nil
	})
}

// Image operations

func (r *repos) CreateImage(ctx context.Context, image *simplereview.ImageAsset) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[image.ScriptID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		if _, exists := d.images[image.ID]; exists {
			return simplereview.ErrDuplicate
		}
		imageCopy := *image
		imageCopy.URL = ""
		d.images[image.ID] = &imageCopy
		return nil
	})
}

func (r *repos) GetImage(ctx context.Context, id uuid.UUID) (*simplereview.ImageAsset, error) {
	var out *simplereview.ImageAsset
	err := r.read(func(d *data) error {
		image, exists := d.images[id]
		if !exists {
			return simplereview.ErrImageNotFound
		}
		imageCopy := *image
		out = &imageCopy
		return nil
	})
	return out, err
}

func (r *repos) ListImages(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.ImageAsset, error) {
	var out []*simplereview.ImageAsset
	err := r.read(func(d *data) error {
		for _, image := range d.images {
			if image.ScriptID == scriptID {
				imageCopy := *image
				out = append(out, &imageCopy)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *repos) CountImages(ctx context.Context, scriptID uuid.UUID) (int, error) {
	count := 0
	err := r.read(func(d *data) error {
		for _, image := range d.images {
			if image.ScriptID == scriptID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *repos) UpdateImage(ctx context.Context, image *simplereview.ImageAsset) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.images[image.ID]; !exists {
			return simplereview.ErrImageNotFound
		}
		imageCopy := *image
		imageCopy.URL = ""
		d.images[image.ID] = &imageCopy
		return nil
	})
}

func (r *repos) DeleteImage(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.images[id]; !exists {
			return simplereview.ErrImageNotFound
		}
		delete(d.images, id)
		return nil
	})
}

func (r *repos) DeleteImagesByScript(ctx context.Context, scriptID uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		for id, image := range d.images {
			if image.ScriptID == scriptID {
				delete(d.images, id)
			}
		}
		return nil
	})
}

// Review operations

func (r *repos) CreateReview(ctx context.Context, review *simplereview.Review) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[review.ScriptID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		reviewCopy := *review
		d.reviews[review.ScriptID] = append(d.reviews[review.ScriptID], &reviewCopy)
		return nil
	})
}

func (r *repos) ListReviews(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.Review, error) {
	var out []*simplereview.Review
	err := r.read(func(d *data) error {
		for _, review := range d.reviews[scriptID] {
			reviewCopy := *review
			out = append(out, &reviewCopy)
		}
		return nil
	})
	return out, err
}

func (r *repos) DeleteReviewsByScript(ctx context.Context, scriptID uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		delete(d.reviews, scriptID)
		return nil
	})
}

// Engagement operations

func (r *repos) AddFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	created := false
	err := r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[scriptID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		facts := d.facts[kind]
		if facts == nil {
			facts = make(map[factKey]time.Time)
			d.facts[kind] = facts
		}
		key := factKey{scriptID: scriptID, userID: userID}
		if _, exists := facts[key]; exists {
			return nil
		}
		facts[key] = time.Now()
		created = true
		return nil
	})
	return created, err
}

func (r *repos) RemoveFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	removed := false
	err := r.write(ctx, func(d *data) error {
		key := factKey{scriptID: scriptID, userID: userID}
		if _, exists := d.facts[kind][key]; exists {
			delete(d.facts[kind], key)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (r *repos) HasFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	has := false
	err := r.read(func(d *data) error {
		_, has = d.facts[kind][factKey{scriptID: scriptID, userID: userID}]
		return nil
	})
	return has, err
}

func (r *repos) CountFacts(ctx context.Context, kind simplereview.FactKind, scriptID uuid.UUID) (int64, error) {
	var count int64
	err := r.read(func(d *data) error {
		for key := range d.facts[kind] {
			if key.scriptID == scriptID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *repos) AppendDownload(ctx context.Context, event *simplereview.DownloadEvent) error {
	return r.write(ctx, func(d *data) error {
		if _, exists := d.scripts[event.ScriptID]; !exists {
			return simplereview.ErrScriptNotFound
		}
		eventCopy := *event
		d.downloads[event.ScriptID] = append(d.downloads[event.ScriptID], &eventCopy)
		return nil
	})
}

func (r *repos) CountDownloads(ctx context.Context, scriptID uuid.UUID) (int64, error) {
	var count int64
	err := r.read(func(d *data) error {
		count = int64(len(d.downloads[scriptID]))
		return nil
	})
	return count, err
}

func (r *repos) CountByScripts(ctx context.Context, kind simplereview.LeaderboardKind, scriptIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	wanted := make(map[uuid.UUID]bool, len(scriptIDs))
	for _, id := range scriptIDs {
		wanted[id] = true
	}
	counts := make(map[uuid.UUID]int64, len(scriptIDs))
	err := r.read(func(d *data) error {
		for id, n := range countAll(d, kind) {
			if wanted[id] {
				counts[id] = n
			}
		}
		return nil
	})
	return counts, err
}

func (r *repos) FactsForUser(ctx context.Context, kind simplereview.FactKind, scriptIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	err := r.read(func(d *data) error {
		for _, id := range scriptIDs {
			if _, ok := d.facts[kind][factKey{scriptID: id, userID: userID}]; ok {
				out[id] = true
			}
		}
		return nil
	})
	return out, err
}

func (r *repos) Leaderboard(ctx context.Context, kind simplereview.LeaderboardKind, limit int) ([]*simplereview.LeaderboardEntry, error) {
	var out []*simplereview.LeaderboardEntry
	err := r.read(func(d *data) error {
		for id, n := range countAll(d, kind) {
			script, exists := d.scripts[id]
			if !exists || script.State != simplereview.StatePublished || n == 0 {
				continue
			}
			out = append(out, &simplereview.LeaderboardEntry{ScriptID: id, Title: script.Title, Count: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if c := strings.Compare(out[i].Title, out[j].Title); c != 0 {
			return c < 0
		}
		return out[i].ScriptID.String() < out[j].ScriptID.String()
	})
	return paginate(out, limit, 0), nil
}

func (r *repos) DeleteEngagementByScript(ctx context.Context, scriptID uuid.UUID) error {
	return r.write(ctx, func(d *data) error {
		for _, facts := range d.facts {
			for key := range facts {
				if key.scriptID == scriptID {
					delete(facts, key)
				}
			}
		}
		delete(d.downloads, scriptID)
		return nil
	})
}

func countAll(d *data, kind simplereview.LeaderboardKind) map[uuid.UUID]int64 {
	counts := make(map[uuid.UUID]int64)
	switch kind {
	case simplereview.LeaderboardDownloads:
		for id, events := range d.downloads {
			counts[id] = int64(len(events))
		}
	case simplereview.LeaderboardFavorites:
		for key := range d.facts[simplereview.FactFavorite] {
			counts[key.scriptID]++
		}
	default:
		for key := range d.facts[simplereview.FactLike] {
			counts[key.scriptID]++
		}
	}
	return counts
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
