package simplereview

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ScriptRepository persists scripts.
type ScriptRepository interface {
	CreateScript(ctx context.Context, script *Script) error
	GetScript(ctx context.Context, id uuid.UUID) (*Script, error)
	// GetScriptForUpdate reads a script and locks it until the surrounding
	// transaction ends. Outside a transaction it behaves like GetScript.
	GetScriptForUpdate(ctx context.Context, id uuid.UUID) (*Script, error)
	UpdateScript(ctx context.Context, script *Script) error
	DeleteScript(ctx context.Context, id uuid.UUID) error
	ListScripts(ctx context.Context, filter ScriptFilter) ([]*Script, error)
	CountScriptsByState(ctx context.Context) (map[State]int64, error)
}

// VersionRepository persists immutable document versions.
type VersionRepository interface {
	CreateVersion(ctx context.Context, version *Version) error
	GetVersion(ctx context.Context, scriptID uuid.UUID, number int) (*Version, error)
	GetLatestVersion(ctx context.Context, scriptID uuid.UUID) (*Version, error)
	ListVersions(ctx context.Context, scriptID uuid.UUID) ([]*Version, error)
	// NextVersionNumber returns max(number)+1 for the script, or 1.
	NextVersionNumber(ctx context.Context, scriptID uuid.UUID) (int, error)
	DeleteVersionsByScript(ctx context.Context, scriptID uuid.UUID) error
}

// ImageRepository persists image assets.
type ImageRepository interface {
	CreateImage(ctx context.Context, image *ImageAsset) error
	GetImage(ctx context.Context, id uuid.UUID) (*ImageAsset, error)
	ListImages(ctx context.Context, scriptID uuid.UUID) ([]*ImageAsset, error)
	CountImages(ctx context.Context, scriptID uuid.UUID) (int, error)
	UpdateImage(ctx context.Context, image *ImageAsset) error
	DeleteImage(ctx context.Context, id uuid.UUID) error
	DeleteImagesByScript(ctx context.Context, scriptID uuid.UUID) error
}

// ReviewRepository persists review records. There is no update operation.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *Review) error
	ListReviews(ctx context.Context, scriptID uuid.UUID) ([]*Review, error)
	DeleteReviewsByScript(ctx context.Context, scriptID uuid.UUID) error
}

// FactKind names an at-most-one-per-(user, script) engagement fact.
type FactKind string

const (
	FactLike     FactKind = "like"
	FactFavorite FactKind = "favorite"
)

// Leaderboard returns the leaderboard ranking this fact kind.
func (k FactKind) Leaderboard() LeaderboardKind {
	if k == FactFavorite {
		return LeaderboardFavorites
	}
	return LeaderboardLikes
}

// EngagementRepository persists likes, favorites and the download ledger.
type EngagementRepository interface {
	// AddFact inserts the fact; created is false when it already existed.
	AddFact(ctx context.Context, kind FactKind, scriptID, userID uuid.UUID) (created bool, err error)
	// RemoveFact deletes the fact; removed is false when it was absent.
	RemoveFact(ctx context.Context, kind FactKind, scriptID, userID uuid.UUID) (removed bool, err error)
	HasFact(ctx context.Context, kind FactKind, scriptID, userID uuid.UUID) (bool, error)
	CountFacts(ctx context.Context, kind FactKind, scriptID uuid.UUID) (int64, error)

	AppendDownload(ctx context.Context, event *DownloadEvent) error
	CountDownloads(ctx context.Context, scriptID uuid.UUID) (int64, error)

	// CountByScripts returns grouped counts for the given scripts in one pass.
	CountByScripts(ctx context.Context, kind LeaderboardKind, scriptIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	// FactsForUser returns which of the scripts carry the user's fact, in one pass.
	FactsForUser(ctx context.Context, kind FactKind, scriptIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error)
	// Leaderboard ranks published scripts by the given ledger.
	Leaderboard(ctx context.Context, kind LeaderboardKind, limit int) ([]*LeaderboardEntry, error)

	DeleteEngagementByScript(ctx context.Context, scriptID uuid.UUID) error
}

// Repositories bundles the per-entity repositories. Inside WithTx every
// repository shares the same transaction.
type Repositories interface {
	Scripts() ScriptRepository
	Versions() VersionRepository
	Images() ImageRepository
	Reviews() ReviewRepository
	Engagement() EngagementRepository
}

// Store is the durable system of record.
type Store interface {
	Repositories

	// WithTx runs fn in a single atomic transaction. Returning an error
	// from fn rolls back everything fn wrote.
	WithTx(ctx context.Context, fn func(tx Repositories) error) error

	Close()
}

// AccountDirectory resolves whether an actor id still names a live account.
type AccountDirectory interface {
	AccountExists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Notifier delivers user-facing messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// PageInvalidator marks rendered pages that depend on the given keys stale.
type PageInvalidator interface {
	InvalidatePages(ctx context.Context, keys ...string) error
}

// Cache is the derived-data cache. Values are pure functions of persisted
// state and may be discarded at any time.
type Cache interface {
	// GetOrCompute returns the cached value for key or runs compute once,
	// sharing the result with concurrent callers of the same key.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error)
	// Invalidate removes every entry equal to or prefixed by each argument.
	Invalidate(keysOrPrefixes ...string)
	Clear()
	Stats() CacheStats
}

// ContentStore persists bytes once per distinct content.
type ContentStore interface {
	// Save stores data under a key derived from its SHA-256 and a sanitized
	// name hint. Saving identical bytes again returns the same ref.
	Save(ctx context.Context, data []byte, nameHint, mimeType string) (*ContentRef, error)
	// Open returns the stored bytes. Paths that do not resolve inside the
	// store fail with ErrObjectNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (*ObjectMeta, error)
	Delete(ctx context.Context, path string) error
}

// URLSigner turns a store-relative path into a caller-facing URL.
type URLSigner interface {
	SignPath(path string) (string, error)
}

// TaskQueue runs side effects in the background with retries.
type TaskQueue interface {
	Submit(name string, fn func(ctx context.Context) error) error
}
